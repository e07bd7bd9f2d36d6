package auth

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Identity struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claims is the claim set shared by access and refresh tokens. The two kinds
// differ only in lifetime; callers track which cookie slot holds which.
type Claims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair carries a freshly issued access/refresh pair together with the
// decoded claims, so callers can set cookie lifetimes and report the access
// token id without re-parsing.
type TokenPair struct {
	AccessToken   string
	AccessClaims  Claims
	RefreshToken  string
	RefreshClaims Claims
}

type RevocationRecord struct {
	JTI        string
	IdentityID string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

type LoginAttempt struct {
	IdentityID    string
	FailedCount   int
	LastFailureAt *time.Time
}
