package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/service"
)

// Session cookie names.
const (
	CookieAccess  = "accessToken"
	CookieRefresh = "refreshToken"
)

// SetSessionCookies writes both session cookies. Production uses Secure +
// SameSite=None scoped to the configured domain so the cookies survive
// cross-subdomain requests; everywhere else stays on Lax without a domain.
func SetSessionCookies(c *gin.Context, cfg config.Config, result service.AuthResult) {
	writeCookie(c, cfg, CookieAccess, result.AccessToken, int(cfg.AccessTokenTTL.Seconds()))
	writeCookie(c, cfg, CookieRefresh, result.RefreshToken, int(cfg.RefreshTokenTTL.Seconds()))
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(c *gin.Context, cfg config.Config) {
	writeCookie(c, cfg, CookieAccess, "", -1)
	writeCookie(c, cfg, CookieRefresh, "", -1)
}

func writeCookie(c *gin.Context, cfg config.Config, name, value string, maxAge int) {
	domain := ""
	secure := false
	sameSite := http.SameSiteLaxMode
	if cfg.Production() {
		domain = cfg.CookieDomain
		secure = true
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(name, value, maxAge, "/", domain, secure, true)
}
