package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/service"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/token"
)

const authContextKey = "authContext"

// AuthContext is the authenticated identity attached to the request. The
// role and restriction flag come from a fresh store read, never from the
// token claims.
type AuthContext struct {
	UserID       int64
	Role         domain.Role
	IsRestricted bool
}

// Auth gates protected routes. A missing or expired access token is
// transparently repaired with the refresh cookie before the request is
// rejected; a successful silent refresh rewrites both cookies exactly
// like the refresh endpoint does.
type Auth struct {
	Service *service.AuthService
	Cfg     config.Config
	Logger  *zap.Logger
	exempt  map[string]struct{}
}

// NewAuth builds the gate. Restricted accounts are rejected everywhere
// except their own profile route.
func NewAuth(svc *service.AuthService, cfg config.Config, logger *zap.Logger) *Auth {
	return &Auth{
		Service: svc,
		Cfg:     cfg,
		Logger:  logger,
		exempt:  map[string]struct{}{"/auth/me": {}},
	}
}

// Authenticate is the gin middleware enforcing the gate.
func (m *Auth) Authenticate(c *gin.Context) {
	access, _ := c.Cookie(CookieAccess)
	refresh, _ := c.Cookie(CookieRefresh)

	var claims token.Claims

	switch {
	case access == "":
		if refresh == "" {
			abort(c, http.StatusUnauthorized, "Access token required", false)
			return
		}
		refreshed, ok := m.silentRefresh(c, refresh)
		if !ok {
			abort(c, http.StatusUnauthorized, "Access token required", false)
			return
		}
		claims = refreshed

	default:
		decoded, err := m.Service.DecodeToken(access)
		if err != nil {
			if refresh == "" {
				abort(c, http.StatusUnauthorized, "Invalid or expired access token", false)
				return
			}
			refreshed, ok := m.silentRefresh(c, refresh)
			if !ok {
				abort(c, http.StatusUnauthorized, "Session expired, please log in again", true)
				return
			}
			claims = refreshed
		} else {
			claims = decoded
		}
	}

	if claims.TokenType != token.TypeAccess {
		abort(c, http.StatusUnauthorized, "Invalid token type", false)
		return
	}

	// Authorization data is re-read on every request so a restriction or
	// role change takes effect without waiting for token expiry.
	user, err := m.Service.UserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		abort(c, http.StatusUnauthorized, "Session is not valid", false)
		return
	}

	if user.IsRestricted && user.Role != domain.RoleAdmin {
		if _, ok := m.exempt[c.FullPath()]; !ok {
			abort(c, http.StatusForbidden, "Account is restricted", false)
			return
		}
	}

	c.Set(authContextKey, AuthContext{
		UserID:       user.ID,
		Role:         user.Role,
		IsRestricted: user.IsRestricted,
	})
	c.Next()
}

func (m *Auth) silentRefresh(c *gin.Context, refresh string) (token.Claims, bool) {
	result, err := m.Service.Refresh(c.Request.Context(), refresh)
	if err != nil {
		return token.Claims{}, false
	}
	SetSessionCookies(c, m.Cfg, result)

	claims, err := m.Service.DecodeToken(result.AccessToken)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("decode freshly issued access token failed", zap.Error(err))
		}
		return token.Claims{}, false
	}
	return claims, true
}

// GetAuthContext exposes the authenticated identity to handlers.
func GetAuthContext(c *gin.Context) (AuthContext, bool) {
	value, ok := c.Get(authContextKey)
	if !ok {
		return AuthContext{}, false
	}
	authCtx, ok := value.(AuthContext)
	return authCtx, ok
}

func abort(c *gin.Context, status int, message string, refreshRequired bool) {
	body := gin.H{"success": false, "message": message}
	if refreshRequired {
		body["refreshRequired"] = true
	}
	c.AbortWithStatusJSON(status, body)
}
