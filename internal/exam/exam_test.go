package exam

import (
	"errors"
	"testing"
	"time"

	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTest(t *testing.T, s *store.Store, typ model.TestType, timeLimit int) int64 {
	t.Helper()
	if _, err := s.CreateMember(model.Member{
		Username:    "member1",
		DisplayName: "member1",
		Role:        model.RoleModerator,
		Active:      true,
	}); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	dirID, err := s.CreateDirection(model.Direction{Name: "robotics"})
	if err != nil {
		t.Fatalf("CreateDirection: %v", err)
	}
	id, err := s.CreateTest(model.Test{
		Name:      "aptitude",
		TimeLimit: timeLimit,
		Type:      typ,
		CreatorID: 1,
	}, []int64{dirID})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	return id
}

func insertQuestion(t *testing.T, s *store.Store, testID int64, qType model.QuestionType, answers []string, correct []int) []int64 {
	t.Helper()
	qID, err := s.AddQuestion(model.Question{
		TestID:  testID,
		Wording: "pick",
		Type:    qType,
	}, answers, correct)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	qs, err := s.QuestionsForTest(testID)
	if err != nil {
		t.Fatalf("QuestionsForTest: %v", err)
	}
	for _, q := range qs {
		if q.ID == qID {
			ids := make([]int64, len(q.Answers))
			for i, a := range q.Answers {
				ids[i] = a.ID
			}
			return ids
		}
	}
	t.Fatalf("question %d not found", qID)
	return nil
}

func TestGrade(t *testing.T) {
	ordinary := &model.Test{Type: model.TestOrdinary}

	questions := []model.Question{
		{ID: 1, Type: model.QuestionSingleChoice, CorrectAnswers: []int64{11}},
		{ID: 2, Type: model.QuestionMultiChoice, CorrectAnswers: []int64{21, 22}},
		{ID: 3, Type: model.QuestionSingleChoice, CorrectAnswers: []int64{31}},
	}

	tests := []struct {
		name    string
		test    *model.Test
		answers map[int64][]int64
		want    int
	}{
		{"all correct", ordinary, map[int64][]int64{1: {11}, 2: {22, 21}, 3: {31}}, 100},
		{"one of three", ordinary, map[int64][]int64{1: {11}, 2: {21}, 3: {32}}, 33},
		{"partial multi earns nothing", ordinary, map[int64][]int64{2: {21}}, 0},
		{"extra option fails", ordinary, map[int64][]int64{2: {21, 22, 23}}, 0},
		{"skipped questions excluded", ordinary, map[int64][]int64{1: {11}}, 100},
		{"empty submission", ordinary, map[int64][]int64{}, 0},
		{"psychological never scored", &model.Test{Type: model.TestPsychological},
			map[int64][]int64{1: {11}, 2: {21, 22}, 3: {31}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.test, questions, tt.answers)
			if got != tt.want {
				t.Errorf("Grade = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStartOrResumeKeepsDeadline(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)
	insertQuestion(t, s, testID, model.QuestionSingleChoice, []string{"a", "b"}, []int{0})

	first, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	if first.Result.Status != model.StatusStarted {
		t.Fatalf("expected started status, got %v", first.Result.Status)
	}
	if len(first.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(first.Questions))
	}

	second, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume resume: %v", err)
	}
	if !second.Result.EndDate.Equal(first.Result.EndDate) {
		t.Errorf("deadline moved: %v -> %v", first.Result.EndDate, second.Result.EndDate)
	}
	if second.Remaining > 30*time.Minute {
		t.Errorf("remaining %v exceeds the limit", second.Remaining)
	}
}

func TestStartOrResumeExpired(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)

	if _, err := svc.StartOrResume(testID, 1); err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}

	svc.WithClock(func() time.Time { return time.Now().Add(31 * time.Minute) })
	_, err := svc.StartOrResume(testID, 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// The lapsed session is now finished with a zero result.
	status, result, err := svc.Status(testID, 1)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != model.StatusFinished {
		t.Errorf("expected finished, got %v", status)
	}
	if result.Result != 0 {
		t.Errorf("expected zero result, got %d", result.Result)
	}
}

func TestSubmitGrades(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)
	q1 := insertQuestion(t, s, testID, model.QuestionSingleChoice, []string{"a", "b"}, []int{0})
	q2 := insertQuestion(t, s, testID, model.QuestionMultiChoice, []string{"a", "b", "c"}, []int{0, 2})

	sess, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	answers := map[int64][]int64{
		sess.Questions[0].ID: {q1[0]},
		sess.Questions[1].ID: {q2[1]},
	}
	result, err := svc.Submit(testID, 1, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != model.StatusFinished {
		t.Errorf("expected finished, got %v", result.Status)
	}
	if result.Result != 50 {
		t.Errorf("expected result 50, got %d", result.Result)
	}
}

func TestSubmitTwice(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)
	q1 := insertQuestion(t, s, testID, model.QuestionSingleChoice, []string{"a", "b"}, []int{0})

	sess, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	qID := sess.Questions[0].ID

	if _, err := svc.Submit(testID, 1, map[int64][]int64{qID: {q1[0]}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = svc.Submit(testID, 1, map[int64][]int64{qID: {q1[1]}})
	if !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}

	// The first grade stands.
	result, err := s.GetTestResult(testID, 1)
	if err != nil {
		t.Fatalf("GetTestResult: %v", err)
	}
	if result.Result != 100 {
		t.Errorf("expected result 100, got %d", result.Result)
	}
}

func TestSubmitWithoutStart(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)

	_, err := svc.Submit(testID, 1, map[int64][]int64{})
	if !errors.Is(err, ErrSessionNotStarted) {
		t.Fatalf("expected ErrSessionNotStarted, got %v", err)
	}
}

func TestSubmitAfterDeadline(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 10)
	q1 := insertQuestion(t, s, testID, model.QuestionSingleChoice, []string{"a", "b"}, []int{0})

	sess, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	qID := sess.Questions[0].ID

	svc.WithClock(func() time.Time { return time.Now().Add(11 * time.Minute) })
	_, err = svc.Submit(testID, 1, map[int64][]int64{qID: {q1[0]}})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	result, err := s.GetTestResult(testID, 1)
	if err != nil {
		t.Fatalf("GetTestResult: %v", err)
	}
	if result.Status != model.StatusFinished {
		t.Errorf("expected finished, got %v", result.Status)
	}
	if result.Result != 0 {
		t.Errorf("expected zero result after expiry, got %d", result.Result)
	}
}

func TestPsychologicalSubmission(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestPsychological, 30)
	q1 := insertQuestion(t, s, testID, model.QuestionSingleChoice, []string{"yes", "no"}, []int{0})

	sess, err := svc.StartOrResume(testID, 1)
	if err != nil {
		t.Fatalf("StartOrResume: %v", err)
	}
	result, err := svc.Submit(testID, 1, map[int64][]int64{sess.Questions[0].ID: {q1[0]}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Result != 0 {
		t.Errorf("psychological test scored %d, want 0", result.Result)
	}
	if result.Status != model.StatusFinished {
		t.Errorf("expected finished, got %v", result.Status)
	}

	// The answers themselves are preserved for review.
	answers, err := s.UserAnswersForTest(testID, 1)
	if err != nil {
		t.Fatalf("UserAnswersForTest: %v", err)
	}
	if len(answers) != 1 {
		t.Errorf("expected 1 stored answer, got %d", len(answers))
	}
}

func TestStatusNotStarted(t *testing.T) {
	s := newTestStore(t)
	svc := NewService(s)
	testID := insertTest(t, s, model.TestOrdinary, 30)

	status, result, err := svc.Status(testID, 1)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != model.StatusNotStarted {
		t.Errorf("expected not started, got %v", status)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}
