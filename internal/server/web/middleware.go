package web

import (
	"net/http"
	"strings"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/labstack/echo/v4"
)

// requireAuth lets signed-in sessions through. Anonymous API calls get 401;
// anonymous page loads are sent to the login form and come back afterwards.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := SessionFrom(c)
		if s.auth.Check(sess) {
			return next(c)
		}

		req := c.Request()
		if req.Method == http.MethodGet && !strings.HasPrefix(req.URL.Path, "/api/") {
			s.auth.RememberIntendedURL(sess, req.URL.RequestURI())
			return c.Redirect(http.StatusFound, "/login")
		}
		return c.JSON(http.StatusUnauthorized, errorBody("authentication required"))
	}
}

// verifyCSRF rejects the request unless it carries the session's token in
// the form field or header.
func (s *Server) verifyCSRF(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := SessionFrom(c)

		candidate := c.FormValue(common.CSRFFieldName)
		if candidate == "" {
			candidate = c.Request().Header.Get(common.CSRFHeaderName)
		}
		if s.toolkit.ValidateCSRFToken(sess, candidate) {
			return next(c)
		}

		ctx := c.Request().Context()
		actor := sess.Username
		if actor == "" {
			actor = "anonymous"
		}
		_ = s.trail.LogSecurityEvent(ctx, models.EventCSRFFailure, actor, map[string]any{
			"path":    c.Request().URL.Path,
			"present": candidate != "",
		})

		body := errorBody("Your form has expired. Please try again.")
		if token, err := s.toolkit.GenerateCSRFToken(sess); err == nil {
			body["csrf_token"] = token
		}
		return c.JSON(http.StatusForbidden, body)
	}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}
