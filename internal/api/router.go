package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/coinmatch/internal/api/handlers"
	"github.com/baharkarakas/coinmatch/internal/auth"
	"github.com/baharkarakas/coinmatch/internal/config"
	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/baharkarakas/coinmatch/internal/middleware"
	"github.com/baharkarakas/coinmatch/internal/services"
)

type RouterDeps struct {
	Cfg           config.Config
	Log           *slog.Logger
	Tokens        *auth.TokenManager
	Users         *services.UserService
	Ledger        *services.LedgerService
	Matches       *services.MatchService
	Settlement    *services.SettlementService
	Notifications *services.NotificationService
}

func NewRouter(d RouterDeps) http.Handler {
	h := &handlers.Handler{
		Users:         d.Users,
		Ledger:        d.Ledger,
		Matches:       d.Matches,
		Settlement:    d.Settlement,
		Notifications: d.Notifications,
		Log:           d.Log,
	}
	authH := handlers.NewAuthHandler(d.Tokens, d.Users, d.Cfg.Env, h)
	authMW := middleware.NewAuthMiddleware(d.Tokens, d.Cfg.Env)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover(d.Log), middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- public ----------
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/users", h.RegisterUser)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Get("/users/{id}", h.GetUser)

			// ---------- coins ----------
			r.Get("/balance", h.GetBalance)
			r.Post("/coins/purchase", h.Purchase)
			r.Get("/coins/history", h.History)

			// ---------- matching ----------
			r.Post("/match-requests", h.SendMatchRequest)
			r.Get("/match-requests", h.ListMatchRequests)
			r.Get("/match-requests/{id}", h.GetMatchRequest)
			r.Post("/match-requests/{id}/approve", h.ApproveMatchRequest())
			r.Post("/match-requests/{id}/reject", h.RejectMatchRequest())
			r.Post("/match-requests/{id}/cancel", h.CancelMatchRequest())

			// ---------- lessons ----------
			r.Post("/lessons", h.BookLesson)
			r.Post("/lessons/{id}/complete", h.CompleteLesson)

			// ---------- notifications ----------
			r.Get("/notifications", h.ListNotifications)
			r.Get("/notifications/unread-count", h.UnreadCount)
			r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}
