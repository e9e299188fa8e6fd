package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/services"
	"github.com/labstack/echo/v4"
)

func (s *Server) health(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.log.Error(c.Request().Context(), "health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// loginForm hands out the CSRF token for the login form, or skips the form
// for sessions that are already signed in.
func (s *Server) loginForm(c echo.Context) error {
	sess := SessionFrom(c)
	if s.auth.Check(sess) {
		return c.Redirect(http.StatusFound, s.auth.IntendedURL(sess))
	}

	token, err := s.toolkit.GenerateCSRFToken(sess)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"csrf_token": token})
}

func (s *Server) login(c echo.Context) error {
	sess := SessionFrom(c)
	ctx := c.Request().Context()

	req := services.LoginRequest{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
		Remember: isChecked(c.FormValue("remember")),
	}

	res, err := s.auth.Login(ctx, sess, req)
	if err == nil {
		if res.RememberToken != "" {
			c.SetCookie(s.cookie(common.RememberCookieName, res.RememberToken, sess.ExpiresAt))
		}
		return c.Redirect(http.StatusFound, res.RedirectTo)
	}

	status, body := loginFailure(err)
	if token, tokErr := s.toolkit.GenerateCSRFToken(sess); tokErr == nil {
		body["csrf_token"] = token
	}

	var throttled *common.ThrottledError
	if errors.As(err, &throttled) {
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(throttled.RetryAfter))
	}
	return c.JSON(status, body)
}

// loginFailure maps Login errors to a status and a response body that never
// reveals which check failed.
func loginFailure(err error) (int, map[string]any) {
	var (
		verr      *common.ValidationError
		throttled *common.ThrottledError
	)
	switch {
	case errors.As(err, &verr):
		body := errorBody("Please correct the highlighted fields.")
		body["fields"] = verr.Fields
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &throttled):
		body := errorBody(throttled.Error())
		body["retry_after"] = throttled.RetryAfter
		return http.StatusTooManyRequests, body
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody(common.ErrInvalidCredentials.Error())
	default:
		return http.StatusServiceUnavailable, errorBody(common.ErrStoreUnavailable.Error())
	}
}

func (s *Server) logout(c echo.Context) error {
	sess := SessionFrom(c)
	if err := s.auth.Logout(c.Request().Context(), sess); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody(common.ErrStoreUnavailable.Error()))
	}
	c.SetCookie(s.expiredCookie(common.RememberCookieName))
	return c.Redirect(http.StatusFound, "/login")
}

type sessionResponse struct {
	User      *models.SessionUser `json:"user"`
	CSRFToken string              `json:"csrf_token"`
	ExpiresAt string              `json:"expires_at"`
}

func (s *Server) currentSession(c echo.Context) error {
	sess := SessionFrom(c)
	token, err := s.toolkit.GenerateCSRFToken(sess)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{
		User:      sess.Summary(),
		CSRFToken: token,
		ExpiresAt: sess.ExpiresAt.Format(http.TimeFormat),
	})
}

func isChecked(v string) bool {
	switch v {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
