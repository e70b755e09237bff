package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"challengetracker/internal/database"
	"challengetracker/internal/models"
	"challengetracker/internal/repository"
	"challengetracker/internal/security"
	"challengetracker/internal/service"
	"challengetracker/migrations"
)

const testPassword = "info839"

type testServer struct {
	t         *testing.T
	handler   http.Handler
	workspace *service.Workspace
	cookie    *http.Cookie
	display   *http.Cookie
	csrf      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping store-backed test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(migrations.FS))

	slots, err := models.ParseClassSlots([]string{"Morning:Morning", "Afternoon:Afternoon"})
	require.NoError(t, err)

	reconciler := service.NewReconciler(repository.NewStore(db), slots)
	ledger := service.NewHistoryLedger(repository.NewHistoryRepository(db))
	workspace := service.NewWorkspace(reconciler, ledger, time.Hour)
	t.Cleanup(workspace.Close)
	require.NoError(t, workspace.Reload(context.Background()))

	auth, err := service.NewAuthService(testPassword, "test-secret", time.Hour)
	require.NoError(t, err)
	limiter := security.NewRateLimiter(3, time.Minute)
	t.Cleanup(limiter.Stop)

	handler := NewRouter(Services{
		Auth:         auth,
		Workspace:    workspace,
		Poller:       service.NewPoller(reconciler, time.Second),
		Ledger:       ledger,
		Search:       service.NewStudentSearch(ledger),
		Backup:       service.NewBackupService(reconciler, ledger, "sqlite"),
		LoginLimiter: limiter,
	})
	return &testServer{t: t, handler: handler, workspace: workspace}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	if s.display != nil {
		req.AddCookie(s.display)
	}
	if s.csrf != "" {
		req.Header.Set(security.CSRFHeader, s.csrf)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.DisplayCookieName {
			s.display = c
		}
	}
	return rec
}

func (s *testServer) login() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/login", map[string]string{"password": testPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.SessionCookieName {
			s.cookie = c
		}
	}
	require.NotNil(s.t, s.cookie)
	require.NotEmpty(s.t, resp.CSRFToken)
	s.csrf = resp.CSRFToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAuthGates(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/state", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/login", map[string]string{"password": "nope"}).Code)

	s.login()
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/state", nil).Code)

	csrf := s.csrf
	s.csrf = ""
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/students", map[string]string{"name": "Ada"}).Code)
	s.csrf = "forged"
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/students", map[string]string{"name": "Ada"}).Code)
	s.csrf = csrf

	var session map[string]string
	decode(t, s.do(http.MethodGet, "/api/session", nil), &session)
	assert.Equal(t, csrf, session["csrfToken"])

	s.cookie.Value = "tampered"
	rec := s.do(http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/login", map[string]string{"password": "guess"}).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/login", map[string]string{"password": testPassword}).Code)
}

func TestClassroomFlow(t *testing.T) {
	s := newTestServer(t)
	s.login()

	rec := s.do(http.MethodPost, "/api/admin/students", map[string]string{"name": "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ada models.Student
	decode(t, rec, &ada)
	require.NotEmpty(t, ada.ID)

	rec = s.do(http.MethodPost, "/api/admin/students/move", map[string]interface{}{"studentIds": []string{ada.ID}, "classId": "Morning"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/dashboard/toggle", map[string]interface{}{"classId": "Morning", "studentId": ada.ID, "index": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var toggle toggleResponse
	decode(t, rec, &toggle)
	assert.True(t, toggle.Completed)
	assert.True(t, toggle.HistoryRecorded)
	assert.Equal(t, 20, toggle.Percent)
	assert.Equal(t, []string{"c1"}, toggle.Challenges)

	rec = s.do(http.MethodPost, "/api/dashboard/toggle", map[string]interface{}{"classId": "Morning", "studentId": ada.ID, "index": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var dash DashboardViewData
	decode(t, s.do(http.MethodGet, "/api/state", nil), &dash)
	require.NotNil(t, dash.Current)
	assert.Equal(t, models.DefaultThemeName, dash.Current.Name)
	assert.True(t, dash.SaveStatus.Pending)
	var morning *ClassView
	for i := range dash.Current.Classes {
		if dash.Current.Classes[i].ID == "Morning" {
			morning = &dash.Current.Classes[i]
		}
	}
	require.NotNil(t, morning)
	require.Len(t, morning.Students, 1)
	assert.Equal(t, [models.ChallengesPerTheme]bool{true}, morning.Students[0].Completed)

	rec = s.do(http.MethodPost, "/api/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status service.SaveStatus
	decode(t, rec, &status)
	assert.Equal(t, service.StatusSaved, status.Status)

	// public display reads the store
	var public PublicViewData
	decode(t, s.do(http.MethodGet, "/api/public", nil), &public)
	require.NotNil(t, public.Class)
	assert.Equal(t, "Morning", public.Class.ID)
	require.Len(t, public.Class.Students, 1)
	assert.Equal(t, 20, public.Class.Students[0].Percent)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/public/class", map[string]string{"publicClassId": "Afternoon"}).Code)
	decode(t, s.do(http.MethodGet, "/api/public", nil), &public)
	assert.Equal(t, "Afternoon", public.PublicClassID)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/public/class", nil).Code)
	decode(t, s.do(http.MethodGet, "/api/public", nil), &public)
	assert.Equal(t, "Morning", public.PublicClassID)

	// history
	var history HistoryViewData
	decode(t, s.do(http.MethodGet, "/api/history?class=Morning", nil), &history)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, []string{models.DefaultChallenges[0]}, history.Entries[0].Challenges)
	assert.Equal(t, []string{"Morning"}, history.Classes)

	edited := history.Entries[0]
	edited.Challenges = []string{models.DefaultChallenges[1], models.DefaultChallenges[4]}
	rec = s.do(http.MethodPut, "/api/history/"+edited.ID, edited)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]bool
	decode(t, rec, &updated)
	assert.True(t, updated["progressUpdated"])
	key := models.ProgressKey("Morning", ada.ID, models.DefaultThemeName)
	assert.Equal(t, []string{"c2", "c5"}, s.workspace.Snapshot().Progress[key].ChallengesCompleted)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/history/missing", edited).Code)

	rec = s.do(http.MethodGet, "/api/history/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Student_Progress_")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	// search
	var names map[string][]string
	decode(t, s.do(http.MethodGet, "/api/students?q=AD", nil), &names)
	assert.Equal(t, []string{"Ada"}, names["students"])

	var profile service.StudentProfile
	decode(t, s.do(http.MethodGet, "/api/students/Ada", nil), &profile)
	require.NotNil(t, profile.Stats)
	assert.Equal(t, 1, profile.Stats.Sessions)

	var cleared map[string]int64
	decode(t, s.do(http.MethodDelete, "/api/history", nil), &cleared)
	assert.Equal(t, int64(1), cleared["deleted"])
}

func TestAdminThemeRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login()

	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/admin/themes", map[string]string{"name": "Gears"}).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/admin/themes", map[string]string{"name": "Gears"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/admin/themes", map[string]string{"name": "  "}).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/admin/challenges/0", map[string]string{"name": "Spur Gear"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/admin/challenges/x", map[string]string{"name": "Spur Gear"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/admin/challenges/7", map[string]string{"name": "Spur Gear"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/admin/challenges/1/image", map[string]string{"image": "https://example.com/gear.png"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/admin/challenges/1/image", map[string]string{"image": "not an image"}).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/admin/themes/Gears", map[string]string{"name": "Gear Trains"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/admin/themes/Gears", map[string]string{"name": "Other"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/admin/classes/Afternoon", map[string]string{"name": "PM"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/admin/public", map[string]string{"publicThemeName": "Gear Trains", "publicClassId": "Afternoon"}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/dashboard/theme", map[string]string{"name": models.DefaultThemeName}).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/dashboard/class", map[string]string{"classId": "Afternoon"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/dashboard/class", map[string]string{"classId": "Evening"}).Code)

	state := s.workspace.Snapshot()
	theme := state.ThemeByName("Gear Trains")
	require.NotNil(t, theme)
	assert.Equal(t, "Spur Gear", theme.Challenges[0])
	assert.Equal(t, "https://example.com/gear.png", theme.ChallengeImages[1])
	assert.Equal(t, "PM", theme.Class("Afternoon").Name)
	assert.Equal(t, "Gear Trains", state.PublicThemeName)
	assert.Equal(t, "Afternoon", state.PublicClassID)
	assert.Equal(t, models.DefaultThemeName, state.CurrentWeekTheme)
	assert.Equal(t, "Afternoon", state.SelectedClassID)
}

func TestAdminBackupRoutes(t *testing.T) {
	s := newTestServer(t)
	s.login()

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/admin/themes", map[string]string{"name": "Gears"}).Code)

	rec := s.do(http.MethodGet, "/api/admin/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "challengetracker_backup_")
	backup := rec.Body.Bytes()

	require.Equal(t, http.StatusNoContent, s.do(http.MethodPut, "/api/admin/themes/Gears", map[string]string{"name": "Renamed"}).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import?clear_history=true", bytes.NewReader(backup))
	req.AddCookie(s.cookie)
	req.Header.Set(security.CSRFHeader, s.csrf)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	state := s.workspace.Snapshot()
	assert.NotNil(t, state.ThemeByName("Gears"))
	assert.Nil(t, state.ThemeByName("Renamed"))

	req = httptest.NewRequest(http.MethodPost, "/api/admin/import", bytes.NewReader([]byte("{")))
	req.AddCookie(s.cookie)
	req.Header.Set(security.CSRFHeader, s.csrf)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	startupStatus = newStartupStatus()
	t.Cleanup(func() { startupStatus = newStartupStatus() })

	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	CompleteStep(StepDatabase)
	CompleteStep(StepMigrations)
	rec = httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body struct {
		Progress int `json:"progress"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 40, body.Progress)

	MarkReady()
	assert.True(t, IsReady())
	rec = httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicDisplaysKeepIndependentSelections(t *testing.T) {
	hall := newTestServer(t)
	lobby := &testServer{t: t, handler: hall.handler, workspace: hall.workspace}

	var view PublicViewData
	decode(t, hall.do(http.MethodGet, "/api/public", nil), &view)
	require.NotNil(t, hall.display, "first visit issues a display cookie")
	decode(t, lobby.do(http.MethodGet, "/api/public", nil), &view)
	require.NotNil(t, lobby.display)
	assert.NotEqual(t, hall.display.Value, lobby.display.Value)

	assert.Equal(t, http.StatusNoContent, hall.do(http.MethodPost, "/api/public/class", map[string]string{"publicClassId": "Afternoon"}).Code)

	decode(t, hall.do(http.MethodGet, "/api/public", nil), &view)
	assert.Equal(t, "Afternoon", view.PublicClassID)
	decode(t, lobby.do(http.MethodGet, "/api/public", nil), &view)
	assert.Equal(t, "Morning", view.PublicClassID, "another display keeps its own selection")

	assert.Equal(t, http.StatusNoContent, lobby.do(http.MethodDelete, "/api/public/class", nil).Code)
	decode(t, hall.do(http.MethodGet, "/api/public", nil), &view)
	assert.Equal(t, "Afternoon", view.PublicClassID, "clearing one display leaves the other alone")
}
