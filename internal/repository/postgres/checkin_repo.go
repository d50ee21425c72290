package postgres

import (
	"context"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type checkInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) *checkInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) CreateWithGarden(ctx context.Context, checkIn *domain.CheckIn) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(checkIn).Error; err != nil {
			return err
		}

		result := tx.Model(&domain.User{}).
			Where("id = ?", checkIn.UserID).
			UpdateColumn("total_check_ins", gorm.Expr("total_check_ins + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *checkInRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*domain.CheckIn, error) {
	var checkIn domain.CheckIn
	err := r.db.WithContext(ctx).
		First(&checkIn, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &checkIn, nil
}

func (r *checkInRepository) List(ctx context.Context, filter domain.CheckInFilter) ([]*domain.CheckIn, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&domain.CheckIn{}).Where("user_id = ?", filter.UserID)
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var checkIns []*domain.CheckIn
	err := scoped().
		Order("date DESC").
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Skip).
		Find(&checkIns).Error
	if err != nil {
		return nil, 0, err
	}

	return checkIns, total, nil
}

func (r *checkInRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *checkInRepository) DeleteWithGarden(ctx context.Context, id, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.CheckIn{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&domain.User{}).
			Where("id = ?", userID).
			UpdateColumn("total_check_ins", gorm.Expr("CASE WHEN total_check_ins > 0 THEN total_check_ins - 1 ELSE 0 END")).
			Error
	})
}

func (r *checkInRepository) FlowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *checkInRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.CheckIn, error) {
	var checkIns []*domain.CheckIn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&checkIns).Error
	return checkIns, err
}

func (r *checkInRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *checkInRepository) CountByType(ctx context.Context, userID uuid.UUID) (map[domain.CheckInType]int64, error) {
	var rows []struct {
		Type  domain.CheckInType
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Select("type, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.CheckInType]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

func (r *checkInRepository) AverageRating(ctx context.Context, userID uuid.UUID) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).
		Model(&domain.CheckIn{}).
		Select("COALESCE(AVG(rating), 0)").
		Where("user_id = ?", userID).
		Row().
		Scan(&avg)
	return avg, err
}

func (r *checkInRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CheckIn{}).Count(&count).Error
	return count, err
}
