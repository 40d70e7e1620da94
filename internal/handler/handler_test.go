package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/akozyrev/sciselect/internal/i18n"
	"github.com/akozyrev/sciselect/internal/model"
	"github.com/akozyrev/sciselect/internal/score"
	"github.com/akozyrev/sciselect/internal/store"
)

type testServer struct {
	srv     *httptest.Server
	store   *store.Store
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	h := New(s, score.NewCalculator(score.Default()), Config{
		DefaultLang: "en",
		DocumentDir: t.TempDir(),
	})
	r := chi.NewRouter()
	h.Routes(r)
	r.Route("/admin", h.AdminRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: s, handler: h}
}

func (ts *testServer) createMember(t *testing.T, username, password string, role model.Role) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id, err := ts.store.CreateMember(model.Member{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	return id
}

// login returns the session cookie for the member.
func (ts *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(ts.srv.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func (ts *testServer) do(t *testing.T, method, path string, cookie *http.Cookie, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember(t, "sidorov", "secret", model.RoleOperator)

	// Wrong password.
	body, _ := json.Marshal(map[string]string{"username": "sidorov", "password": "wrong"})
	resp, err := http.Post(ts.srv.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	cookie := ts.login(t, "sidorov", "secret")
	if cookie.Value == "" {
		t.Fatal("empty session token")
	}

	// The cookie opens authenticated routes.
	resp = ts.do(t, http.MethodGet, "/applications/mine", cookie, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before application exists, got %d", resp.StatusCode)
	}

	// Without a cookie the route is closed.
	resp = ts.do(t, http.MethodGet, "/applications/mine", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", resp.StatusCode)
	}
}

func TestApplicationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember(t, "sidorov", "secret", model.RoleOperator)
	cookie := ts.login(t, "sidorov", "secret")

	year, season := model.CurrentDraftCycle(time.Now())
	resp := ts.do(t, http.MethodPost, "/applications/", cookie, map[string]any{
		"birth_day":    "2000-03-01T00:00:00Z",
		"draft_year":   year,
		"draft_season": season,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create application: status %d", resp.StatusCode)
	}
	app := decodeBody[model.Application](t, resp)

	// A second application for the same member is rejected.
	resp = ts.do(t, http.MethodPost, "/applications/", cookie, map[string]any{
		"birth_day":    "2000-03-01T00:00:00Z",
		"draft_year":   year,
		"draft_season": season,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate application, got %d", resp.StatusCode)
	}

	// A past draft cycle is rejected.
	otherCookie := func() *http.Cookie {
		ts.createMember(t, "late", "secret", model.RoleOperator)
		return ts.login(t, "late", "secret")
	}()
	resp = ts.do(t, http.MethodPost, "/applications/", otherCookie, map[string]any{
		"birth_day":    "2000-03-01T00:00:00Z",
		"draft_year":   year - 1,
		"draft_season": season,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for past cycle, got %d", resp.StatusCode)
	}

	// Education with an out-of-range average score is rejected.
	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/educations", cookie, map[string]any{
		"education_type": "b", "avg_score": 7.5, "end_year": 2024, "is_ended": true,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid avg score, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/educations", cookie, map[string]any{
		"education_type": "b", "avg_score": 5.0, "end_year": 2024, "is_ended": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add education: status %d", resp.StatusCode)
	}

	// Updating recomputes the rating score.
	app.Patents = true
	resp = ts.do(t, http.MethodPut, appPath(app.ID)+"/", cookie, app)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update application: status %d", resp.StatusCode)
	}
	updated := decodeBody[model.Application](t, resp)
	if updated.FinalScore <= 0 {
		t.Errorf("expected positive final score, got %v", updated.FinalScore)
	}

	// A past draft cycle is rejected on update too.
	stale := updated
	stale.DraftYear = 1999
	resp = ts.do(t, http.MethodPut, appPath(app.ID)+"/", cookie, stale)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 updating to a past cycle, got %d", resp.StatusCode)
	}
	current, err := ts.store.GetApplication(app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if current.DraftYear == 1999 {
		t.Fatal("past draft year was persisted")
	}

	// Finalize, then edits are refused.
	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/finalize", cookie, map[string]bool{"final": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: status %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPut, appPath(app.ID)+"/", cookie, app)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 editing a final application, got %d", resp.StatusCode)
	}
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	masterID := ts.createMember(t, "ivanov", "secret", model.RoleMaster)
	ts.createMember(t, "sidorov", "secret", model.RoleOperator)

	dirID, err := ts.store.CreateDirection(model.Direction{Name: "robotics"})
	if err != nil {
		t.Fatalf("CreateDirection: %v", err)
	}
	affID, err := ts.store.CreateAffiliation(model.Affiliation{DirectionID: dirID, Company: 1, Platoon: 1})
	if err != nil {
		t.Fatalf("CreateAffiliation: %v", err)
	}
	if err := ts.store.AssignAffiliation(masterID, affID); err != nil {
		t.Fatalf("AssignAffiliation: %v", err)
	}

	operator := ts.login(t, "sidorov", "secret")
	year, season := model.CurrentDraftCycle(time.Now())
	resp := ts.do(t, http.MethodPost, "/applications/", operator, map[string]any{
		"birth_day":    "2000-03-01T00:00:00Z",
		"draft_year":   year,
		"draft_season": season,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create application: status %d", resp.StatusCode)
	}
	app := decodeBody[model.Application](t, resp)
	resp = ts.do(t, http.MethodPut, appPath(app.ID)+"/directions", operator, map[string]any{
		"direction_ids": []int64{dirID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set directions: status %d", resp.StatusCode)
	}

	// Operators cannot book.
	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/book", operator, map[string]int64{"affiliation_id": affID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for operator booking, got %d", resp.StatusCode)
	}

	master := ts.login(t, "ivanov", "secret")
	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/book", master, map[string]int64{"affiliation_id": affID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book: status %d", resp.StatusCode)
	}

	// A second booking anywhere conflicts.
	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/book", master, map[string]int64{"affiliation_id": affID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double booking, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, appPath(app.ID)+"/unbook", master, map[string]int64{"affiliation_id": affID})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unbook: status %d", resp.StatusCode)
	}
}

func TestExamFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember(t, "moder", "secret", model.RoleModerator)
	ts.createMember(t, "sidorov", "secret", model.RoleOperator)

	moderator := ts.login(t, "moder", "secret")
	dirID, err := ts.store.CreateDirection(model.Direction{Name: "robotics"})
	if err != nil {
		t.Fatalf("CreateDirection: %v", err)
	}

	resp := ts.do(t, http.MethodPost, "/tests/", moderator, map[string]any{
		"name": "aptitude", "time_limit": 30, "direction_ids": []int64{dirID},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create test: status %d", resp.StatusCode)
	}
	test := decodeBody[model.Test](t, resp)

	resp = ts.do(t, http.MethodPost, testPath(test.ID)+"/questions", moderator, map[string]any{
		"wording": "pick", "question_type": 1,
		"answers": []string{"a", "b"}, "correct_idx": []int{0},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add question: status %d", resp.StatusCode)
	}

	// The candidate must have chosen the direction to see the test.
	operator := ts.login(t, "sidorov", "secret")
	year, season := model.CurrentDraftCycle(time.Now())
	resp = ts.do(t, http.MethodPost, "/applications/", operator, map[string]any{
		"birth_day":    "2000-03-01T00:00:00Z",
		"draft_year":   year,
		"draft_season": season,
	})
	app := decodeBody[model.Application](t, resp)
	ts.do(t, http.MethodPut, appPath(app.ID)+"/directions", operator, map[string]any{
		"direction_ids": []int64{dirID},
	})

	resp = ts.do(t, http.MethodGet, "/tests/", operator, nil)
	tests := decodeBody[[]model.Test](t, resp)
	if len(tests) != 1 {
		t.Fatalf("expected 1 visible test, got %d", len(tests))
	}

	resp = ts.do(t, http.MethodPost, testPath(test.ID)+"/start", operator, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start test: status %d", resp.StatusCode)
	}
	session := decodeBody[struct {
		Questions []model.Question `json:"questions"`
	}](t, resp)
	if len(session.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(session.Questions))
	}
	q := session.Questions[0]

	resp = ts.do(t, http.MethodPost, testPath(test.ID)+"/submit", operator, map[string]any{
		"answers": map[int64][]int64{q.ID: {q.Answers[0].ID}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit test: status %d", resp.StatusCode)
	}
	result := decodeBody[model.TestResult](t, resp)
	if result.Result != 100 {
		t.Errorf("expected result 100, got %d", result.Result)
	}

	// A second submission hits the terminal state.
	resp = ts.do(t, http.MethodPost, testPath(test.ID)+"/submit", operator, map[string]any{
		"answers": map[int64][]int64{},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 resubmitting, got %d", resp.StatusCode)
	}
}

func TestMasterScopedCreation(t *testing.T) {
	ts := newTestServer(t)
	masterID := ts.createMember(t, "ivanov", "secret", model.RoleMaster)
	ts.createMember(t, "petrov", "secret", model.RoleMaster)

	dirID, err := ts.store.CreateDirection(model.Direction{Name: "robotics"})
	if err != nil {
		t.Fatalf("CreateDirection: %v", err)
	}
	affID, err := ts.store.CreateAffiliation(model.Affiliation{DirectionID: dirID, Company: 1, Platoon: 1})
	if err != nil {
		t.Fatalf("CreateAffiliation: %v", err)
	}
	if err := ts.store.AssignAffiliation(masterID, affID); err != nil {
		t.Fatalf("AssignAffiliation: %v", err)
	}

	// A master with an affiliation can create tests, work groups and
	// competencies.
	master := ts.login(t, "ivanov", "secret")
	resp := ts.do(t, http.MethodPost, "/tests/", master, map[string]any{
		"name": "aptitude", "time_limit": 30, "direction_ids": []int64{dirID},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("master creating a test: status %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPost, "/work-groups", master, map[string]any{
		"affiliation_id": affID, "name": "alpha",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("master creating a work group: status %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPost, "/competencies", master, map[string]any{"name": "go"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("master creating a competence: status %d", resp.StatusCode)
	}

	// A master with zero affiliations is refused on every scoped creation.
	bare := ts.login(t, "petrov", "secret")
	resp = ts.do(t, http.MethodPost, "/tests/", bare, map[string]any{
		"name": "other", "time_limit": 30,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for master without affiliations creating a test, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodPost, "/competencies", bare, map[string]any{"name": "rust"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for master without affiliations creating a competence, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireModerator(t *testing.T) {
	ts := newTestServer(t)
	ts.createMember(t, "ivanov", "secret", model.RoleMaster)
	master := ts.login(t, "ivanov", "secret")

	resp := ts.do(t, http.MethodGet, "/admin/members", master, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for master on admin routes, got %d", resp.StatusCode)
	}
}

func appPath(id int64) string {
	return "/applications/" + strconv.FormatInt(id, 10)
}

func testPath(id int64) string {
	return "/tests/" + strconv.FormatInt(id, 10)
}
