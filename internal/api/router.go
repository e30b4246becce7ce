package api

import (
	"net"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/admin-auth/internal/api/handler"
	"github.com/99minutos/admin-auth/internal/api/middleware"
	"github.com/99minutos/admin-auth/internal/core/domain"
	"github.com/99minutos/admin-auth/internal/core/ports"
)

const metricsSubsystem = "adminauth"

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Auth     ports.AuthService
	Admin    ports.AdminService
	Verifier ports.TokenVerifier
	// Limiter throttles /auth/login and /auth/register per client IP.
	// Nil disables throttling.
	Limiter middleware.Limiter
	// Health lists the dependencies checked by /health/ready.
	Health map[string]handler.Pinger
	// TrustedProxies are the ranges whose X-Forwarded-For is honoured when
	// resolving the client IP. Empty means the TCP peer is the client.
	TrustedProxies []*net.IPNet
	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// prometheus default registry.
	Registry *prometheus.Registry
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.IPExtractor = ipExtractor(deps.TrustedProxies)

	promMW := echoprometheus.MiddlewareConfig{Subsystem: metricsSubsystem}
	promHandler := echoprometheus.HandlerConfig{}
	if deps.Registry != nil {
		promMW.Registerer = deps.Registry
		promHandler.Gatherer = deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(promMW))
	e.Use(echomiddleware.BodyLimit("1M"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	adminHandler := handler.NewAdminHandler(deps.Admin)
	healthHandler := handler.NewHealthHandler(deps.Health)
	authenticate := middleware.Authenticate(deps.Verifier)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register, throttle(deps, "/auth/register")...)
	auth.POST("/login", authHandler.Login, throttle(deps, "/auth/login")...)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", authHandler.Me, authenticate)
	auth.POST("/logout", authHandler.Logout, authenticate)

	// --- Admin routes (bearer + admin role) ---
	admin := e.Group("/admin", authenticate, middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.PATCH("/users/:id", adminHandler.UpdateUser)
	admin.DELETE("/users/:id", adminHandler.DeactivateUser)
	admin.POST("/invite-codes", adminHandler.CreateInvite)
	admin.GET("/invite-codes", adminHandler.ListInvites)
	admin.PATCH("/invite-codes/:id/deactivate", adminHandler.DeactivateInvite)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/activity-logs", adminHandler.ActivityLogs)

	// --- Ops (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(promHandler))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// ipExtractor reads X-Forwarded-For only behind the given proxies, so clients
// cannot choose the address the throttle and audit log key on.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range trusted {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func throttle(deps Dependencies, route string) []echo.MiddlewareFunc {
	if deps.Limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.Throttle(deps.Limiter, route, deps.Log)}
}

// requestLogger emits one zerolog line per request. Bodies and headers are
// never logged, so credentials and tokens stay out of the logs.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
