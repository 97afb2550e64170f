package service

import (
	"time"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
)

// AuthResult bundles a freshly issued token pair with profile metadata.
// The refresh token only ever travels to the client inside a cookie.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         UserViewModel
}

// UserViewModel is the account data returned to clients.
type UserViewModel struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Role         domain.Role `json:"role"`
	IsRestricted bool        `json:"isRestricted"`
}

// SessionView describes one active session without exposing its token.
type SessionView struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterInput is the validated registration payload.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     domain.Role
}

func newUserViewModel(user domain.User) UserViewModel {
	return UserViewModel{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Phone:        user.Phone,
		Role:         user.Role,
		IsRestricted: user.IsRestricted,
	}
}
