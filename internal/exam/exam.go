// Package exam runs timed test sessions: one session per candidate and
// test, a deadline fixed at start, and grading on submission.
package exam

import (
	"errors"
	"log/slog"
	"time"

	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/store"
)

var (
	// ErrTestNotFound means no test exists with the requested ID.
	ErrTestNotFound = errors.New("test not found")
	// ErrSessionNotStarted means the candidate never opened the test.
	ErrSessionNotStarted = errors.New("test session not started")
	// ErrSessionFinished means the session reached its terminal state and
	// accepts no further submissions.
	ErrSessionFinished = errors.New("test session already finished")
	// ErrSessionExpired means the deadline passed before the submission.
	ErrSessionExpired = errors.New("test session deadline passed")
)

// Session is an open or finished test attempt as handed to callers:
// the result row plus the questions and any answers given so far.
type Session struct {
	Test      *model.Test
	Result    *model.TestResult
	Questions []model.Question
	Answers   map[int64][]int64
	Remaining time.Duration
}

// Service drives test sessions against the store.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// NewService creates an exam service. The clock is real time; tests
// override it through WithClock.
func NewService(s *store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// StartOrResume opens the member's session for the test, creating it on
// first access. The deadline is start time plus the test's limit and
// does not move on later visits. A session whose deadline already passed
// is finished in place and reported as expired.
func (s *Service) StartOrResume(testID, memberID int64) (*Session, error) {
	test, err := s.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, ErrTestNotFound
	}

	result, created, err := s.store.StartTestResult(testID, memberID, test.TimeLimit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !created {
		if result.Status == model.StatusFinished {
			return nil, ErrSessionFinished
		}
		if result.Expired(now) {
			if err := s.store.ExpireTestResult(testID, memberID); err != nil {
				return nil, err
			}
			return nil, ErrSessionExpired
		}
	}

	questions, err := s.store.QuestionsForTest(testID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.UserAnswersForTest(testID, memberID)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("test session started", "test", testID, "member", memberID, "deadline", result.EndDate)
	}
	return &Session{
		Test:      test,
		Result:    result,
		Questions: questions,
		Answers:   answers,
		Remaining: result.EndDate.Sub(now),
	}, nil
}

// Submit stores the member's answers, grades the attempt and finishes
// the session. The finished state is terminal: of two concurrent
// submissions only one lands, the other gets ErrSessionFinished. A
// submission after the deadline finishes the session without grading.
func (s *Service) Submit(testID, memberID int64, answers map[int64][]int64) (*model.TestResult, error) {
	test, err := s.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, ErrTestNotFound
	}
	result, err := s.store.GetTestResult(testID, memberID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrSessionNotStarted
	}
	if result.Status == model.StatusFinished {
		return nil, ErrSessionFinished
	}
	if result.Expired(s.now()) {
		if err := s.store.ExpireTestResult(testID, memberID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	if err := s.store.ReplaceUserAnswers(memberID, answers); err != nil {
		return nil, err
	}
	questions, err := s.store.QuestionsForTest(testID)
	if err != nil {
		return nil, err
	}
	grade := Grade(test, questions, answers)
	if err := s.store.FinalizeTestResult(testID, memberID, grade); err != nil {
		if errors.Is(err, store.ErrSessionFinished) {
			return nil, ErrSessionFinished
		}
		return nil, err
	}
	slog.Info("test session graded", "test", testID, "member", memberID, "result", grade)
	return s.store.GetTestResult(testID, memberID)
}

// Status returns the member's session state for the test without opening
// a session, applying deadline expiry on read so a lapsed attempt shows
// as finished.
func (s *Service) Status(testID, memberID int64) (model.SessionStatus, *model.TestResult, error) {
	result, err := s.store.GetTestResult(testID, memberID)
	if err != nil {
		return 0, nil, err
	}
	if result == nil {
		return model.StatusNotStarted, nil, nil
	}
	if result.Status == model.StatusStarted && result.Expired(s.now()) {
		if err := s.store.ExpireTestResult(testID, memberID); err != nil {
			return 0, nil, err
		}
		result.Status = model.StatusFinished
	}
	return result.Status, result, nil
}
