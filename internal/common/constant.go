// Package common contains shared constants and sentinel errors used across
// the authentication components.
package common

const (
	// SessionCookieName is the default cookie carrying the opaque session token.
	SessionCookieName = "inventory_session"

	// RememberCookieName carries the signed remember-me token.
	RememberCookieName = "inventory_remember"

	// CSRFFieldName is the form field the login and logout forms post the token in.
	CSRFFieldName = "csrf_token"

	// CSRFHeaderName is accepted as an alternative to the form field.
	CSRFHeaderName = "X-CSRF-Token"
)
