// Package token signs and verifies the session token pair: short-lived
// access tokens and long-lived refresh tokens. Both are compact signed
// claims blobs; the type claim keeps them from standing in for each other.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
)

const issuer = "hsm-auth"

// Token types carried in the claims payload.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrExpired indicates a token past its expiry. Callers must treat it
	// the same as ErrInvalid toward clients; the split exists for logging.
	ErrExpired = errors.New("token: expired")
	// ErrInvalid indicates a malformed or tampered token.
	ErrInvalid = errors.New("token: invalid")
)

// Claims is the verified payload of a session token.
type Claims struct {
	UserID       int64
	Role         domain.Role
	TokenType    string
	TokenVersion int
	ExpiresAt    time.Time
}

type customClaims struct {
	Role         string `json:"role"`
	TokenType    string `json:"type"`
	TokenVersion int    `json:"tokenVersion,omitempty"`
}

// Codec signs and verifies session tokens with a single HS256 key.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec constructs a codec for the given signing secret and TTLs.
func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess produces a signed access token carrying the user's id and role.
func (c *Codec) IssueAccess(user domain.User) (string, error) {
	return c.sign(user, TypeAccess, 0, c.accessTTL)
}

// IssueRefresh produces a signed refresh token carrying the user's id,
// role, and a snapshot of their current token version.
func (c *Codec) IssueRefresh(user domain.User) (string, error) {
	return c.sign(user, TypeRefresh, user.TokenVersion, c.refreshTTL)
}

func (c *Codec) sign(user domain.User, tokenType string, version int, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		// The random jti keeps two tokens minted for the same user within
		// the same second from colliding; rotation depends on the new
		// refresh token differing from the old one.
		ID:        newJTI(),
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{
		Role:         string(user.Role),
		TokenType:    tokenType,
		TokenVersion: version,
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

func newJTI() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Decode verifies signature and expiry and returns the claims. Failures
// come back as ErrInvalid or ErrExpired; nothing else is surfaced so the
// caller cannot leak why a token was rejected.
func (c *Codec) Decode(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, ErrInvalid
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return Claims{}, ErrInvalid
	}

	if err := std.Validate(gojwt.Expected{Issuer: issuer, Time: time.Now()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalid
	}

	var expiry time.Time
	if std.Expiry != nil {
		expiry = std.Expiry.Time()
	}

	return Claims{
		UserID:       userID,
		Role:         domain.Role(custom.Role),
		TokenType:    custom.TokenType,
		TokenVersion: custom.TokenVersion,
		ExpiresAt:    expiry,
	}, nil
}
