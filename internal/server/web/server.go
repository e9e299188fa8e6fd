// Package web exposes the login flow over HTTP with echo. Every request gets
// a server-side session; state-changing routes require a CSRF token and
// protected routes an authenticated session.
package web

import (
	"context"
	"net/http"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/security"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth     *services.AuthService
	Sessions *services.SessionService
	Toolkit  *security.Toolkit
	Trail    services.AuditTrail
	Store    Pinger
	Log      logging.Logger
	Config   *config.Config
}

type Server struct {
	e         *echo.Echo
	protected *echo.Group

	auth     *services.AuthService
	sessions *services.SessionService
	toolkit  *security.Toolkit
	trail    services.AuditTrail
	store    Pinger
	log      logging.Logger
	cfg      *config.Config
}

func New(d Deps) *Server {
	s := &Server{
		e:        echo.New(),
		auth:     d.Auth,
		sessions: d.Sessions,
		toolkit:  d.Toolkit,
		trail:    d.Trail,
		store:    d.Store,
		log:      d.Log.With("module", "web"),
		cfg:      d.Config,
	}
	s.e.HideBanner = true
	s.e.HidePort = true

	s.e.Use(middleware.Recover())
	s.e.Use(middleware.RequestID())
	s.e.Use(s.requestLogger())
	s.e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: s.cfg.RequestTimeout}))
	s.e.Use(s.clientInfo)

	s.e.GET("/health", s.health)

	withSession := s.e.Group("", s.loadSession)
	withSession.GET("/login", s.loginForm)
	withSession.POST("/login", s.login, s.verifyCSRF)

	s.protected = withSession.Group("", s.requireAuth)
	s.protected.POST("/logout", s.logout, s.verifyCSRF)
	s.protected.GET("/api/session", s.currentSession)

	return s
}

// Protected is the route group for pages that need a signed-in user. Pages
// of the wider application mount themselves here.
func (s *Server) Protected() *echo.Group {
	return s.protected
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				s.log.Warn(c.Request().Context(), "request failed", append(args, "error", v.Error)...)
				return nil
			}
			s.log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}
