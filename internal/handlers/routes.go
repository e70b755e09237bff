package handlers

import (
	"net/http"
	"time"

	"challengetracker/internal/metrics"
	"challengetracker/internal/security"
	"challengetracker/internal/service"
)

// Services are the dependencies the HTTP layer is built from
type Services struct {
	Auth           *service.AuthService
	Workspace      *service.Workspace
	Poller         *service.Poller
	Displays       *service.DisplayRegistry
	Ledger         *service.HistoryLedger
	Search         *service.StudentSearch
	Backup         *service.BackupService
	LoginLimiter   *security.RateLimiter
	MetricsEnabled bool
}

// displayTTL is how long an idle public display keeps its selections
const displayTTL = 24 * time.Hour

// NewRouter registers every route and wraps the mux with request logging
func NewRouter(s Services) http.Handler {
	if s.Displays == nil {
		s.Displays = service.NewDisplayRegistry(displayTTL)
	}
	middleware := NewMiddleware(s.Auth, s.LoginLimiter)
	authHandler := NewAuthHandler(s.Auth)
	dashboardHandler := NewDashboardHandler(s.Workspace)
	adminHandler := NewAdminHandler(s.Workspace, s.Backup)
	publicHandler := NewPublicHandler(s.Poller, s.Displays)
	historyHandler := NewHistoryHandler(s.Ledger, s.Workspace)
	searchHandler := NewSearchHandler(s.Search)

	mux := http.NewServeMux()

	// Ops
	mux.HandleFunc("GET /healthz", Healthz)
	if s.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	// Auth
	mux.HandleFunc("POST /login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /logout", authHandler.Logout)
	mux.HandleFunc("GET /api/session", middleware.RequireAuth(authHandler.Session))

	// Dashboard
	mux.HandleFunc("GET /api/state", middleware.RequireAuth(dashboardHandler.State))
	mux.HandleFunc("GET /api/save", middleware.RequireAuth(dashboardHandler.SaveStatus))
	mux.HandleFunc("POST /api/save", middleware.Protect(dashboardHandler.Save))
	mux.HandleFunc("POST /api/dashboard/toggle", middleware.Protect(dashboardHandler.Toggle))
	mux.HandleFunc("POST /api/dashboard/class", middleware.Protect(dashboardHandler.SelectClass))
	mux.HandleFunc("POST /api/dashboard/theme", middleware.Protect(dashboardHandler.SelectTheme))

	// Admin
	mux.HandleFunc("POST /api/admin/students", middleware.Protect(adminHandler.AddStudent))
	mux.HandleFunc("POST /api/admin/students/move", middleware.Protect(adminHandler.MoveStudents))
	mux.HandleFunc("PUT /api/admin/students/{id}", middleware.Protect(adminHandler.RenameStudent))
	mux.HandleFunc("DELETE /api/admin/students/{id}", middleware.Protect(adminHandler.RemoveStudent))
	mux.HandleFunc("PUT /api/admin/classes/{id}", middleware.Protect(adminHandler.RenameClass))
	mux.HandleFunc("POST /api/admin/themes", middleware.Protect(adminHandler.CreateTheme))
	mux.HandleFunc("PUT /api/admin/themes/{name}", middleware.Protect(adminHandler.RenameTheme))
	mux.HandleFunc("PUT /api/admin/challenges/{index}", middleware.Protect(adminHandler.RenameChallenge))
	mux.HandleFunc("PUT /api/admin/challenges/{index}/image", middleware.Protect(adminHandler.SetChallengeImage))
	mux.HandleFunc("POST /api/admin/public", middleware.Protect(adminHandler.SetPublic))
	mux.HandleFunc("GET /api/admin/export", middleware.RequireAuth(adminHandler.ExportDatabase))
	mux.HandleFunc("POST /api/admin/import", middleware.Protect(adminHandler.ImportDatabase))

	// Public display
	mux.HandleFunc("GET /api/public", publicHandler.Display)
	mux.HandleFunc("POST /api/public/class", publicHandler.SelectClass)
	mux.HandleFunc("DELETE /api/public/class", publicHandler.ClearSelection)

	// History
	mux.HandleFunc("GET /api/history", middleware.RequireAuth(historyHandler.List))
	mux.HandleFunc("PUT /api/history", middleware.Protect(historyHandler.ReplaceAll))
	mux.HandleFunc("DELETE /api/history", middleware.Protect(historyHandler.Clear))
	mux.HandleFunc("GET /api/history/export", middleware.RequireAuth(historyHandler.Export))
	mux.HandleFunc("PUT /api/history/{id}", middleware.Protect(historyHandler.Update))

	// Search
	mux.HandleFunc("GET /api/students", middleware.RequireAuth(searchHandler.Students))
	mux.HandleFunc("GET /api/students/{name}", middleware.RequireAuth(searchHandler.Profile))

	return Logging(mux)
}
