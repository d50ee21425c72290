package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 30
	PasswordMinLength = 6
)

type User struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username      string    `json:"username" gorm:"uniqueIndex;not null;size:30"`
	PasswordHash  string    `json:"-" gorm:"not null"`
	Role          Role      `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	TotalCheckIns int       `json:"-" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// Garden is the ordered collection of a user's flowers. Flowers holds
// check-in ids in insertion order.
type Garden struct {
	Flowers       []uuid.UUID `json:"flowers"`
	TotalCheckIns int         `json:"totalCheckIns"`
}

// RefreshToken is a single login session. Only the SHA-256 digest of the
// raw token is stored.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	TokenHash string    `json:"-" gorm:"uniqueIndex;not null;size:64"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the token is no longer usable at now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// NormalizeUsername trims the username and checks its length
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	n := utf8.RuneCountInString(username)
	if n < UsernameMinLength || n > UsernameMaxLength {
		return "", NewValidationError("Username must be between 3 and 30 characters")
	}
	return username, nil
}

func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return NewValidationError("Password must be at least 6 characters")
	}
	return nil
}
