// Package password hashes and verifies account passwords with argon2id,
// and enforces the marketplace's complexity policy at registration/reset.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/argon2"
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var defaultParams = params{
	memory:  64 * 1024,
	time:    3,
	threads: 2,
	keyLen:  32,
	saltLen: 16,
}

var (
	// ErrInvalidHash indicates a stored hash that cannot be parsed.
	ErrInvalidHash = errors.New("password: invalid hash")
	// ErrTooWeak indicates a candidate password failing the policy.
	ErrTooWeak = errors.New("password: too weak")
)

// Hash returns an argon2id hash string embedding parameters and salt.
func Hash(plain string) (string, error) {
	p := defaultParams
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks a password against an encoded argon2id hash.
func Verify(plain, encoded string) (bool, error) {
	p, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	actual := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// Validate enforces the registration password policy: at least 8
// characters with one letter and one digit.
func Validate(plain string) error {
	if len(plain) < 8 {
		return ErrTooWeak
	}
	var hasLetter, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrTooWeak
	}
	return nil
}

func decodeHash(encoded string) (params, []byte, []byte, error) {
	var (
		p               params
		version         int
		saltB64, sumB64 string
	)
	n, err := fmt.Sscanf(encoded, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &p.memory, &p.time, &p.threads, &saltB64)
	if err != nil || n != 5 || version != argon2.Version {
		return params{}, nil, nil, ErrInvalidHash
	}

	// Sscanf's %s is greedy; the trailing field still holds "salt$sum".
	var i int
	for i = 0; i < len(saltB64); i++ {
		if saltB64[i] == '$' {
			break
		}
	}
	if i == len(saltB64) {
		return params{}, nil, nil, ErrInvalidHash
	}
	sumB64 = saltB64[i+1:]
	saltB64 = saltB64[:i]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return params{}, nil, nil, ErrInvalidHash
	}
	sum, err := base64.RawStdEncoding.DecodeString(sumB64)
	if err != nil {
		return params{}, nil, nil, ErrInvalidHash
	}
	return p, salt, sum, nil
}
