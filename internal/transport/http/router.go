package http

import (
	"net/http"
	"time"

	"github.com/go-bookstore-admin/internal/application/auth"
	"github.com/go-bookstore-admin/internal/application/catalog"
	"github.com/go-bookstore-admin/internal/application/cleanup"
	inviteapp "github.com/go-bookstore-admin/internal/application/invite"
	"github.com/go-bookstore-admin/internal/application/user"
	"github.com/go-bookstore-admin/internal/config"
	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/infrastructure/dynamo"
	"github.com/go-bookstore-admin/internal/infrastructure/smtp"
	"github.com/go-bookstore-admin/internal/infrastructure/sns"
	"github.com/go-bookstore-admin/internal/ratelimit"
	"github.com/go-bookstore-admin/internal/session"
	"github.com/go-bookstore-admin/internal/transport/http/handler"
	appmiddleware "github.com/go-bookstore-admin/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	OtpRepo          *dynamo.OtpRepo
	AuthSessionRepo  *dynamo.AuthSessionRepo
	LoginSessionRepo *dynamo.LoginSessionRepo
	InviteRepo       *dynamo.InviteRepo
	BookRepo         *dynamo.BookRepo
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	Limiter          *ratelimit.Limiter
	SessionManager   *session.Manager
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.SessionManager, deps.LoginSessionRepo, deps.UserRepo)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints
	// on top of the per-action attempt counters inside the auth service.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := auth.NewService(auth.Deps{
		OtpRepo:          deps.OtpRepo,
		AuthSessionRepo:  deps.AuthSessionRepo,
		UserRepo:         deps.UserRepo,
		LoginSessionRepo: deps.LoginSessionRepo,
		InviteRepo:       deps.InviteRepo,
		Mailer:           deps.Mailer,
		SMSSender:        deps.SMSSender,
		Limiter:          deps.Limiter,
		OtpTTL:           time.Duration(cfg.OTPTTLMinutes) * time.Minute,
		SessionTTL:       time.Duration(cfg.SessionTTLDays) * 24 * time.Hour,
	})
	inviteSvc := inviteapp.NewService(deps.InviteRepo, deps.Mailer, cfg.AppBaseURL, time.Duration(cfg.InviteTTLDays)*24*time.Hour)
	userSvc := user.NewService(deps.UserRepo, deps.LoginSessionRepo)
	catalogSvc := catalog.NewService(deps.BookRepo)
	cleanupSvc := cleanup.NewService(deps.OtpRepo, deps.AuthSessionRepo, deps.LoginSessionRepo)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, deps.SessionManager)
	inviteH := handler.NewInviteHandler(inviteSvc)
	userH := handler.NewUserHandler(userSvc)
	bookH := handler.NewBookHandler(catalogSvc)
	cleanupH := handler.NewCleanupHandler(cleanupSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/check-email", authH.CheckEmail)
		r.With(sensitiveRL.Limit).Post("/auth/otp/send", authH.SendOtp)
		r.With(sensitiveRL.Limit).Post("/auth/otp/verify", authH.VerifyOtp)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/reset-password", authH.ResetPassword)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", authH.CurrentSession)
			r.Post("/sessions/logout", authH.Logout)

			// Any authenticated user
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Get("/books", bookH.List)
			r.Get("/books/{id}", bookH.Get)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)

				r.Post("/invites", inviteH.Create)
				r.Get("/invites", inviteH.List)
				r.Delete("/invites/{email}", inviteH.Revoke)

				r.Post("/books", bookH.Create)
				r.Put("/books/{id}", bookH.Update)
				r.Delete("/books/{id}", bookH.Delete)

				r.Post("/cleanup/run-all", cleanupH.RunAll)
				r.Post("/cleanup/expired-otps", cleanupH.ExpiredOtps)
				r.Post("/cleanup/old-used-otps", cleanupH.OldUsedOtps)
				r.Post("/cleanup/expired-auth-sessions", cleanupH.ExpiredAuthSessions)
				r.Post("/cleanup/old-auth-sessions", cleanupH.OldAuthSessions)
				r.Post("/cleanup/expired-login-sessions", cleanupH.ExpiredLoginSessions)
			})
		})
	})

	return r
}
