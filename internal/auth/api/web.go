package authapi

import (
	"net/http"
	"strings"
	"time"

	"ticketd/internal/auth/session"
)

// setSessionCookies mirrors the token pair into HttpOnly cookies so browser
// clients never touch the raw values from script.
func (h *Handler) setSessionCookies(w http.ResponseWriter, issued session.Issued) {
	if !h.cfg.CookiesEnabled {
		return
	}
	h.setCookie(w, h.cfg.AccessCookieName, issued.AccessToken, issued.AccessExp)
	h.setCookie(w, h.cfg.RefreshCookieName, issued.RefreshToken, issued.RefreshExp)
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	if !h.cfg.CookiesEnabled {
		return
	}
	h.expireCookie(w, h.cfg.AccessCookieName)
	h.expireCookie(w, h.cfg.RefreshCookieName)
}

func (h *Handler) setStateCookie(w http.ResponseWriter, state string, now time.Time) {
	h.setCookie(w, h.cfg.StateCookieName, state, now.Add(10*time.Minute))
}

func (h *Handler) readStateCookie(r *http.Request) string {
	c, err := r.Cookie(h.cfg.StateCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.StateCookieName)
}

// refreshTokenFromRequest prefers an explicit body value over the cookie.
func (h *Handler) refreshTokenFromRequest(r *http.Request, bodyToken string) string {
	if v := strings.TrimSpace(bodyToken); v != "" {
		return v
	}
	if !h.cfg.CookiesEnabled {
		return ""
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// accessTokenFromRequest prefers the Authorization header over the cookie.
func (h *Handler) accessTokenFromRequest(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return tok
	}
	if !h.cfg.CookiesEnabled {
		return ""
	}
	c, err := r.Cookie(h.cfg.AccessCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
