package postgres

import (
	"context"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *refreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *refreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken, now time.Time) (uuid.UUID, error) {
	var (
		userID  uuid.UUID
		expired bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.RefreshToken
		if err := tx.First(&current, "token_hash = ?", oldHash).Error; err != nil {
			return err
		}

		// The delete is the compare-and-set: a concurrent rotation of the same
		// token sees zero affected rows.
		result := tx.Where("id = ?", current.ID).Delete(&domain.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}

		if current.IsExpired(now) {
			expired = true
			return nil
		}

		next.UserID = current.UserID
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		userID = current.UserID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if expired {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return userID, nil
}

func (r *refreshTokenRepository) DeleteForUser(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", userID, tokenHash).
		Delete(&domain.RefreshToken{}).Error
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at <= ?", userID, now).
		Delete(&domain.RefreshToken{})
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	var tokens []*domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&tokens).Error
	return tokens, err
}
