package session

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CookieCredentials sets the session as an http-only cookie on an echo response.
type CookieCredentials struct {
	C      echo.Context
	Secure bool
}

func (cc CookieCredentials) SetSession(token string, expires time.Time) {
	cc.C.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cc CookieCredentials) ClearSession() {
	cc.C.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
