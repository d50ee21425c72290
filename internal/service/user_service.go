package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	profileRecentFlowers = 100
	adminUserListLimit   = 50
	recentUserWindow     = 7 * 24 * time.Hour
)

type UserService struct {
	userRepo    repository.UserRepository
	checkInRepo repository.CheckInRepository
	now         func() time.Time
}

func NewUserService(userRepo repository.UserRepository, checkInRepo repository.CheckInRepository) *UserService {
	return &UserService{
		userRepo:    userRepo,
		checkInRepo: checkInRepo,
		now:         time.Now,
	}
}

type ProfileStats struct {
	TotalCheckIns  int64                        `json:"totalCheckIns"`
	CheckInsByType map[domain.CheckInType]int64 `json:"checkInsByType"`
	AverageRating  float64                      `json:"averageRating"`
}

type Profile struct {
	User    *domain.User           `json:"user"`
	Garden  domain.Garden          `json:"garden"`
	Flowers []domain.FlowerSummary `json:"flowers"`
	Stats   ProfileStats           `json:"stats"`
}

type UpdateProfileInput struct {
	Username *string
}

type AdminStats struct {
	TotalUsers             int64   `json:"totalUsers"`
	TotalCheckIns          int64   `json:"totalCheckIns"`
	RecentUsers            int64   `json:"recentUsers"`
	AverageCheckInsPerUser float64 `json:"averageCheckInsPerUser"`
}

// Garden returns the user's flowers in planting order together with the
// stored counter.
func (s *UserService) Garden(ctx context.Context, user *domain.User) (domain.Garden, error) {
	ids, err := s.checkInRepo.FlowerIDs(ctx, user.ID)
	if err != nil {
		return domain.Garden{}, fmt.Errorf("failed to load garden: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return domain.Garden{
		Flowers:       ids,
		TotalCheckIns: user.TotalCheckIns,
	}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	garden, err := s.Garden(ctx, user)
	if err != nil {
		return nil, err
	}

	recent, err := s.checkInRepo.Recent(ctx, userID, profileRecentFlowers)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent flowers: %w", err)
	}
	flowers := make([]domain.FlowerSummary, 0, len(recent))
	for _, c := range recent {
		flowers = append(flowers, c.Summary())
	}

	total, err := s.checkInRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}
	byType, err := s.checkInRepo.CountByType(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count check-ins by type: %w", err)
	}
	avg, err := s.checkInRepo.AverageRating(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average rating: %w", err)
	}

	return &Profile{
		User:    user,
		Garden:  garden,
		Flowers: flowers,
		Stats: ProfileStats{
			TotalCheckIns:  total,
			CheckInsByType: byType,
			AverageRating:  round2(avg),
		},
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	if input.Username != nil {
		username, err := domain.NormalizeUsername(*input.Username)
		if err != nil {
			return nil, err
		}

		existing, err := s.userRepo.GetByUsername(ctx, username)
		if err == nil && existing.ID != userID {
			return nil, ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}

		if err := s.userRepo.UpdateUsername(ctx, userID, username); err != nil {
			switch {
			case errors.Is(err, gorm.ErrDuplicatedKey):
				return nil, ErrUsernameTaken
			case errors.Is(err, gorm.ErrRecordNotFound):
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to update username: %w", err)
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *UserService) AdminStats(ctx context.Context) (*AdminStats, error) {
	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	totalCheckIns, err := s.checkInRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}
	recentUsers, err := s.userRepo.CountCreatedSince(ctx, s.now().Add(-recentUserWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent users: %w", err)
	}

	var avg float64
	if totalUsers > 0 {
		avg = round2(float64(totalCheckIns) / float64(totalUsers))
	}

	return &AdminStats{
		TotalUsers:             totalUsers,
		TotalCheckIns:          totalCheckIns,
		RecentUsers:            recentUsers,
		AverageCheckInsPerUser: avg,
	}, nil
}

// ListUsers returns the newest accounts first.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx, adminUserListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return s.userRepo.ListByRole(ctx, role)
}

// SetRole changes a user's role. Only the admin CLI calls this.
func (s *UserService) SetRole(ctx context.Context, username string, role domain.Role) (*domain.User, error) {
	if !role.IsValid() {
		names := make([]string, len(domain.AllRoles))
		for i, r := range domain.AllRoles {
			names[i] = string(r)
		}
		return nil, domain.NewValidationError("Invalid role, expected one of: " + strings.Join(names, ", "))
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.userRepo.SetRole(ctx, user.ID, role); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	user.Role = role
	return user, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
