// ABOUTME: chi router wiring for the petition-gateway HTTP API
// ABOUTME: Applies request-id, real-ip, recovery, logging and CORS middleware, then mounts the auth routes

package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/2389/petition-gateway/internal/api"
	"github.com/2389/petition-gateway/internal/auth"
	"github.com/2389/petition-gateway/internal/store"
)

// corsOptions allows credentialed requests from the configured browser origins.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// newRouter assembles the HTTP handler for g.
func (g *Gateway) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)
	if len(g.config.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(g.config.CORS.AllowedOrigins)))
	}

	r.Get(api.PathHealth, g.handleHealth)

	r.Post(api.PathRegister, g.handleRegister)
	r.Post(api.PathLoginInit, g.handleLoginInit)
	r.Post(api.PathLoginVerify, g.handleLoginVerify)
	r.With(auth.OptionalGate(g.tokens)).Post(api.PathLogout, g.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(auth.Gate(g.tokens))

		r.Get(api.PathSession, g.handleSession)
		r.Post(api.PathPasswordInit, g.handlePasswordInit)
		r.Post(api.PathPasswordVerify, g.handlePasswordVerify)

		r.With(auth.RequireRoles(store.RoleSuperAdmin, store.RoleDepartmentAdmin)).
			Post(api.PathIdentities, g.handleProvision)
		r.With(auth.RequireRoles(store.RoleSuperAdmin)).
			Delete(api.PathIdentities+"/{id}", g.handleDeleteIdentity)
		r.With(auth.RequireRoles(store.RoleSuperAdmin)).
			Get(api.PathAudit, g.handleListAudit)
	})

	return r
}

// requestLogger logs one line per request at debug level with the chi request ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}
