package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/config"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	httptransport "github.com/Jitendra7073/HSM-backend-sub001/internal/http"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/http/handler"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/http/middleware"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/service"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/token"
)

type stubUserRepo struct {
	mu       sync.Mutex
	users    map[int64]domain.User
	sessions *stubSessionRepo
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *stubUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return user, nil
}

func (r *stubUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.mu.Lock()
	u, ok := r.users[id]
	if !ok {
		r.mu.Unlock()
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.TokenVersion++
	r.users[id] = u
	r.mu.Unlock()
	_, err := r.sessions.DeleteByUser(ctx, id)
	return err
}

func (r *stubUserRepo) InvalidateSessions(ctx context.Context, id int64) error {
	r.mu.Lock()
	u, ok := r.users[id]
	if !ok {
		r.mu.Unlock()
		return repository.ErrNotFound
	}
	u.TokenVersion++
	r.users[id] = u
	r.mu.Unlock()
	_, err := r.sessions.DeleteByUser(ctx, id)
	return err
}

type stubSessionRepo struct {
	mu   sync.Mutex
	rows map[string]domain.RefreshToken
}

func (r *stubSessionRepo) Create(_ context.Context, row domain.RefreshToken) (domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row.CreatedAt = time.Now()
	r.rows[row.Token] = row
	return row, nil
}

func (r *stubSessionRepo) GetByToken(_ context.Context, tok string) (domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tok]
	if !ok {
		return domain.RefreshToken{}, repository.ErrNotFound
	}
	return row, nil
}

func (r *stubSessionRepo) Rotate(_ context.Context, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[oldToken]
	if !ok {
		return false, nil
	}
	delete(r.rows, oldToken)
	row.Token = newToken
	row.ExpiresAt = expiresAt
	r.rows[newToken] = row
	return true, nil
}

func (r *stubSessionRepo) DeleteByToken(_ context.Context, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, tok)
	return nil
}

func (r *stubSessionRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, row := range r.rows {
		if row.UserID == userID {
			delete(r.rows, tok)
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) ListByUser(_ context.Context, userID int64) ([]domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RefreshToken
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubResetRepo struct {
	mu   sync.Mutex
	rows map[string]domain.ResetToken
}

func (r *stubResetRepo) Create(_ context.Context, row domain.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.Token] = row
	return nil
}

func (r *stubResetRepo) GetByToken(_ context.Context, tok string) (domain.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tok]
	if !ok {
		return domain.ResetToken{}, repository.ErrNotFound
	}
	return row, nil
}

func (r *stubResetRepo) Delete(_ context.Context, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, tok)
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		JWTSecretKey:    "test-secret-0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   15 * time.Minute,
		ServiceName:     "hsm-auth",
	}
	sessions := &stubSessionRepo{rows: map[string]domain.RefreshToken{}}
	users := &stubUserRepo{users: map[int64]domain.User{}, sessions: sessions}
	resets := &stubResetRepo{rows: map[string]domain.ResetToken{}}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	codec := token.NewCodec([]byte(cfg.JWTSecretKey), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	svc := service.NewAuthService(users, sessions, resets, codec, nil, node, cfg, zap.NewNop())

	gate := middleware.NewAuth(svc, cfg, zap.NewNop())
	authHandler := handler.NewAuthHandler(svc, cfg, zap.NewNop())
	return httptransport.NewRouter(cfg, authHandler, gate, nil)
}

func doJSON(router *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookies(t *testing.T, rec *httptest.ResponseRecorder) (access, refresh *http.Cookie) {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		switch cookie.Name {
		case middleware.CookieAccess:
			access = cookie
		case middleware.CookieRefresh:
			refresh = cookie
		}
	}
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterThenAccessProtectedRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"new@example.com","password":"hunter2abc","name":"New Person"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := parseJSON(t, rec)
	require.Equal(t, true, body["success"])
	require.NotEmpty(t, body["accessToken"])

	access, refresh := sessionCookies(t, rec)
	require.True(t, access.HttpOnly)
	require.True(t, refresh.HttpOnly)
	require.Equal(t, "/", access.Path)

	rec = doJSON(router, http.MethodGet, "/auth/me", "", access)
	require.Equal(t, http.StatusOK, rec.Code)

	user, ok := parseJSON(t, rec)["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "new@example.com", user["email"])
	require.Equal(t, "customer", user["role"])
}

func TestSequentialRefreshRotation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	_, refresh := sessionCookies(t, rec)

	seenAccess := map[string]bool{}
	seenRefresh := map[string]bool{refresh.Value: true}
	first := refresh

	for i := 0; i < 3; i++ {
		rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", refresh)
		require.Equal(t, http.StatusOK, rec.Code)

		body := parseJSON(t, rec)
		accessToken, _ := body["accessToken"].(string)
		require.False(t, seenAccess[accessToken], "access token reused on refresh %d", i)
		seenAccess[accessToken] = true

		_, refresh = sessionCookies(t, rec)
		require.False(t, seenRefresh[refresh.Value], "refresh token reused on refresh %d", i)
		seenRefresh[refresh.Value] = true
	}

	// a token from an earlier hop in the chain is dead
	rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", first)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// the head of the chain still works
	rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutAllAcrossDevices(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	phoneAccess, phoneRefresh := sessionCookies(t, rec)

	rec = doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, laptopRefresh := sessionCookies(t, rec)

	rec = doJSON(router, http.MethodGet, "/auth/sessions", "", phoneAccess)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions, ok := parseJSON(t, rec)["sessions"].([]any)
	require.True(t, ok)
	require.Len(t, sessions, 2)

	rec = doJSON(router, http.MethodPost, "/auth/logout-all", "", phoneAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	// neither device can refresh its way back in
	rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", phoneRefresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", laptopRefresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookiesAndIsIdempotent(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	_, refresh := sessionCookies(t, rec)

	rec = doJSON(router, http.MethodPost, "/auth/logout", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, cookie := range rec.Result().Cookies() {
		require.Empty(t, cookie.Value)
	}

	// logging out a second time, or with no cookie at all, still succeeds
	rec = doJSON(router, http.MethodPost, "/auth/logout", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(router, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/refresh-token", "", refresh)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotAndResetPasswordOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"old password 1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/forgot-password",
		`{"email":"cust@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resetToken, _ := parseJSON(t, rec)["resetToken"].(string)
	require.NotEmpty(t, resetToken)

	rec = doJSON(router, http.MethodPost, "/auth/reset-password?token="+resetToken,
		`{"newPassword":"new password 2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"cust@example.com","password":"old password 1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/login",
		`{"email":"cust@example.com","password":"new password 2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// second redemption fails
	rec = doJSON(router, http.MethodPost, "/auth/reset-password?token="+resetToken,
		`{"newPassword":"another pass 3"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid Token", parseJSON(t, rec)["message"])
}

func TestRegisterValidationOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/auth/register", `{"email":"cust@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(router, http.MethodPost, "/auth/register",
		`{"email":"cust@example.com","password":"hunter2abc"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Email already registered.", parseJSON(t, rec)["message"])
}
