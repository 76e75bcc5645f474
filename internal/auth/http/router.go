package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/castellan/castellan/internal/auth/metrics"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/pkg/httpx"
	"github.com/castellan/castellan/pkg/slogx"

	_ "github.com/castellan/castellan/api/castellan" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	gatherer prometheus.Gatherer

	RegisterService *service.RegisterService
	UserService     *service.UserService
	RoleService     *service.RoleService
	SessionsService *service.SessionsService
	AuthService     *service.AuthService
	MFAService      *service.MFAService
	SocialService   *service.SocialService
	Metrics         metrics.Recorder
}

func NewRouter(buildVersion string, st store.Store, gatherer prometheus.Gatherer, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		gatherer:     gatherer,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSessions()
	r.registerRoles()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Castellan Authentication Service API
//	@version		0.1.0
//	@description	Credential verification, session issuance, and session validation.
//	@description
//	@description	Sessions are opaque server-side records, never signed tokens. Validation runs
//	@description	a fixed gate chain; a 401 never reveals which gate rejected the session.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	chain := append([]httpx.Middleware{r.statusMetrics()}, r.middlewares...)
	httpx.Chain(r.Mux, chain...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		Register: r.RegisterService,
		Users:    r.UserService,
	}

	// POST /v1/users - strict limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	for pattern, handler := range map[string]http.HandlerFunc{
		"POST /v1/users/{id}/activate":   h.HandleActivate,
		"POST /v1/users/{id}/deactivate": h.HandleDeactivate,
		"POST /v1/users/{id}/verify":     h.HandleVerify,
		"POST /v1/users/{id}/unverify":   h.HandleUnverify,
		"POST /v1/users/{id}/roles":      h.HandleAssignRole,
	} {
		r.Mux.Handle(pattern,
			httpx.Chain(handler, httpx.RateLimitByIP(httpx.ModerateLimit)))
	}

	r.Mux.Handle("PUT /v1/users/{id}/email",
		httpx.Chain(http.HandlerFunc(h.HandleChangeEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Password changes get the strict profile like other credential endpoints.
	r.Mux.Handle("PUT /v1/users/{id}/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/users/{id}/roles/{roleId}",
		httpx.Chain(http.HandlerFunc(h.HandleUnassignRole),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{
		Auth:     r.AuthService,
		Sessions: r.SessionsService,
		MFA:      r.MFAService,
		Social:   r.SocialService,
		Metrics:  r.Metrics,
	}

	// POST /v1/users/authenticate - strict limit by IP + username form field
	// to slow credential stuffing without letting one attacker lock everyone out.
	r.Mux.Handle("POST /v1/users/authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/sessions/{id}/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users/{id}/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleListForUser),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{Roles: r.RoleService}

	r.Mux.Handle("POST /v1/roles",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/roles",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/roles/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFA: r.MFAService}

	r.Mux.Handle("POST /v1/users/{id}/mfa/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Strict: prevents brute forcing six-digit codes.
	r.Mux.Handle("POST /v1/users/{id}/mfa/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/users/{id}/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
}

// statusMetrics records the response status of every request.
func (r *Router) statusMetrics() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Metrics == nil {
				next.ServeHTTP(w, req)
				return
			}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, req)
			r.Metrics.RecordHTTPStatus(sw.status)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
