package repository

import (
	"context"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error
	SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	List(ctx context.Context, limit int) ([]*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// Rotate atomically consumes the token with oldHash and stores next for the
	// same user. It returns gorm.ErrRecordNotFound when the old token is
	// unknown, expired or already consumed.
	Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken, now time.Time) (uuid.UUID, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID, tokenHash string) error
	DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error)
}

type CheckInRepository interface {
	// CreateWithGarden inserts the check-in and bumps the owner's garden
	// counter in one transaction.
	CreateWithGarden(ctx context.Context, checkIn *domain.CheckIn) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.CheckIn, error)
	List(ctx context.Context, filter domain.CheckInFilter) ([]*domain.CheckIn, int64, error)
	UpdateFields(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error
	// DeleteWithGarden removes the check-in and decrements the counter in one
	// transaction. Returns gorm.ErrRecordNotFound when nothing was deleted.
	DeleteWithGarden(ctx context.Context, id, userID uuid.UUID) error
	FlowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.CheckIn, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByType(ctx context.Context, userID uuid.UUID) (map[domain.CheckInType]int64, error)
	AverageRating(ctx context.Context, userID uuid.UUID) (float64, error)
	Count(ctx context.Context) (int64, error)
}

type Repositories struct {
	User         UserRepository
	RefreshToken RefreshTokenRepository
	CheckIn      CheckInRepository
}
