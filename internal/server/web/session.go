package web

import (
	"net/http"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/audit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/labstack/echo/v4"
)

const ctxKeySession = "session"

// SessionFrom returns the session loaded for the request.
func SessionFrom(c echo.Context) *models.Session {
	sess, _ := c.Get(ctxKeySession).(*models.Session)
	return sess
}

func (s *Server) clientInfo(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := audit.ContextWithClient(req.Context(), audit.Client{IP: c.RealIP(), UserAgent: req.UserAgent()})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// loadSession attaches the request's session and writes it back, with its
// cookie, just before the response goes out.
func (s *Server) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var cookieToken string
		if ck, err := c.Cookie(common.SessionCookieName); err == nil {
			cookieToken = ck.Value
		}

		sess, err := s.sessions.Load(ctx, cookieToken)
		if err != nil {
			s.log.Error(ctx, "session load failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, errorBody(common.ErrStoreUnavailable.Error()))
		}

		if !sess.Authenticated() {
			s.restoreFromRememberCookie(c, sess)
		}
		c.Set(ctxKeySession, sess)

		c.Response().Before(func() {
			if err := s.sessions.Save(ctx, sess); err != nil {
				s.log.Error(ctx, "session save failed", "error", err)
				return
			}
			switch {
			case !sess.New && sess.Token != cookieToken:
				c.SetCookie(s.cookie(common.SessionCookieName, sess.Token, sess.ExpiresAt))
			case sess.New && cookieToken != "":
				c.SetCookie(s.expiredCookie(common.SessionCookieName))
			}
		})

		return next(c)
	}
}

func (s *Server) restoreFromRememberCookie(c echo.Context, sess *models.Session) {
	ck, err := c.Cookie(common.RememberCookieName)
	if err != nil || ck.Value == "" {
		return
	}
	if _, err := s.auth.LoginFromRememberToken(c.Request().Context(), sess, ck.Value); err != nil {
		c.SetCookie(s.expiredCookie(common.RememberCookieName))
	}
}

func (s *Server) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) expiredCookie(name string) *http.Cookie {
	ck := s.cookie(name, "", time.Unix(0, 0))
	ck.MaxAge = -1
	return ck
}
