package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	username string
	password string
	role     domain.Role
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		username: fmt.Sprintf("user_%s", uuid.New().String()[:8]),
		password: "testpassword123",
		role:     domain.RoleUser,
	}
}

func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.username = username
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithRole(role domain.Role) *UserBuilder {
	b.role = role
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     b.username,
		PasswordHash: string(hashedPassword),
		Role:         b.role,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	Message      string `json:"message"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID       string        `json:"id"`
		Username string        `json:"username"`
		Role     domain.Role   `json:"role"`
		Garden   domain.Garden `json:"garden"`
	} `json:"user"`
}

// BuildAndAuthenticate registers the user through the API, applies the
// builder's role directly in the database and returns a fresh session.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, *AuthResponse) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": b.username,
		"password": b.password,
	})

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status code: %d: %s", resp.StatusCode, data)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, err := uuid.Parse(authResp.User.ID)
	if err != nil {
		t.Fatalf("invalid user id in response: %v", err)
	}

	if b.role != domain.RoleUser {
		if err := ts.DB.DB.Model(&domain.User{}).Where("id = ?", userID).Update("role", b.role).Error; err != nil {
			t.Fatalf("failed to set role: %v", err)
		}
	}

	user := &domain.User{
		ID:       userID,
		Username: authResp.User.Username,
		Role:     b.role,
	}

	return user, &authResp
}

// CheckInBuilder creates check-ins directly in the database. The user's
// garden counter is bumped to match.
type CheckInBuilder struct {
	owner      *domain.User
	typ        domain.CheckInType
	title      string
	animeTitle string
	rating     int
	emotion    domain.Emotion
	date       time.Time
}

func NewCheckInBuilder(owner *domain.User) *CheckInBuilder {
	return &CheckInBuilder{
		owner:      owner,
		typ:        domain.CheckInTypeOpening,
		title:      "Unravel",
		animeTitle: "Tokyo Ghoul",
		rating:     8,
		emotion:    domain.EmotionEnergetic,
		date:       time.Now().UTC(),
	}
}

func (b *CheckInBuilder) WithType(t domain.CheckInType) *CheckInBuilder {
	b.typ = t
	return b
}

func (b *CheckInBuilder) WithTitle(title string) *CheckInBuilder {
	b.title = title
	return b
}

func (b *CheckInBuilder) WithRating(rating int) *CheckInBuilder {
	b.rating = rating
	return b
}

func (b *CheckInBuilder) WithEmotion(emotion domain.Emotion) *CheckInBuilder {
	b.emotion = emotion
	return b
}

func (b *CheckInBuilder) WithDate(date time.Time) *CheckInBuilder {
	b.date = date
	return b
}

func (b *CheckInBuilder) Build(t *testing.T, db *gorm.DB) *domain.CheckIn {
	t.Helper()

	checkIn := &domain.CheckIn{
		ID:         uuid.New(),
		UserID:     b.owner.ID,
		Type:       b.typ,
		Title:      b.title,
		AnimeTitle: b.animeTitle,
		Rating:     b.rating,
		Emotion:    b.emotion,
		Date:       b.date,
		FlowerSize: service.FlowerSize(b.rating),
		Position:   datatypes.NewJSONType(domain.Position{X: 50, Y: 50}),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(checkIn).Error; err != nil {
			return err
		}
		return tx.Model(&domain.User{}).Where("id = ?", b.owner.ID).
			Update("total_check_ins", gorm.Expr("total_check_ins + 1")).Error
	})
	if err != nil {
		t.Fatalf("failed to create check-in: %v", err)
	}

	return checkIn
}

// CreateAuthenticatedRequest builds a request with a JSON body and a bearer token
func CreateAuthenticatedRequest(t *testing.T, method, url, token string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// Do sends an authenticated request and returns the response
func Do(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(CreateAuthenticatedRequest(t, method, url, token, body))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
