package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

var ErrCheckInNotFound = domain.NewNotFoundError("Check-in not found")

// Broadcaster pushes garden changes to the owner's live subscribers.
// Implementations must not block.
type Broadcaster interface {
	NewFlower(userID uuid.UUID, checkIn *domain.CheckIn)
	FlowerUpdated(userID uuid.UUID, checkIn *domain.CheckIn)
	FlowerRemoved(userID uuid.UUID, checkInID uuid.UUID)
}

type noopBroadcaster struct{}

func (noopBroadcaster) NewFlower(uuid.UUID, *domain.CheckIn)     {}
func (noopBroadcaster) FlowerUpdated(uuid.UUID, *domain.CheckIn) {}
func (noopBroadcaster) FlowerRemoved(uuid.UUID, uuid.UUID)       {}

type CheckInService struct {
	checkInRepo repository.CheckInRepository
	broadcaster Broadcaster
	now         func() time.Time
}

func NewCheckInService(checkInRepo repository.CheckInRepository, broadcaster Broadcaster) *CheckInService {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &CheckInService{
		checkInRepo: checkInRepo,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// FlowerSize maps a 1..10 rating onto a flower scale in [0.65, 2.0].
func FlowerSize(rating int) float64 {
	return 0.5 + (float64(rating)/10)*1.5
}

type CreateCheckInInput struct {
	Type       domain.CheckInType
	Title      string
	AnimeTitle string
	AnimeID    *int
	AnimeImage *string
	Episode    *int
	Rating     int
	Emotion    domain.Emotion
	Notes      string
	Date       *time.Time
}

// UpdateCheckInInput carries only the fields the caller provided.
type UpdateCheckInInput struct {
	Type       *domain.CheckInType
	Title      *string
	AnimeTitle *string
	AnimeID    *int
	AnimeImage *string
	Episode    *int
	Rating     *int
	Emotion    *domain.Emotion
	Notes      *string
	Date       *time.Time
}

type ListCheckInsQuery struct {
	Type  string
	Limit int
	Skip  int
}

type CheckInPage struct {
	Items []*domain.CheckIn
	Total int64
	Limit int
	Skip  int
}

func (s *CheckInService) Create(ctx context.Context, userID uuid.UUID, input CreateCheckInInput) (*domain.CheckIn, error) {
	if err := validateType(input.Type); err != nil {
		return nil, err
	}
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	if err := validateEmotion(input.Emotion); err != nil {
		return nil, err
	}
	if err := validateNotes(input.Notes); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	animeTitle := strings.TrimSpace(input.AnimeTitle)
	if title == "" {
		if input.Type.IsMusic() {
			return nil, domain.NewValidationError("Title is required for music types")
		}
		title = animeTitle
	}
	if title == "" {
		return nil, domain.NewValidationError("Title is required")
	}

	date := s.now()
	if input.Date != nil && !input.Date.IsZero() {
		date = *input.Date
	}

	checkIn := &domain.CheckIn{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       input.Type,
		Title:      title,
		AnimeTitle: animeTitle,
		AnimeID:    input.AnimeID,
		AnimeImage: normalizeImage(input.AnimeImage),
		Episode:    input.Episode,
		Rating:     input.Rating,
		Emotion:    input.Emotion,
		Notes:      input.Notes,
		Date:       date,
		FlowerSize: FlowerSize(input.Rating),
		Position:   datatypes.NewJSONType(randomPosition()),
	}

	if err := s.checkInRepo.CreateWithGarden(ctx, checkIn); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}

	saved, err := s.checkInRepo.GetByIDForUser(ctx, checkIn.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload check-in: %w", err)
	}

	s.broadcaster.NewFlower(userID, saved)
	return saved, nil
}

func (s *CheckInService) List(ctx context.Context, userID uuid.UUID, query ListCheckInsQuery) (*CheckInPage, error) {
	filter := domain.CheckInFilter{
		UserID: userID,
		Limit:  query.Limit,
		Skip:   query.Skip,
	}

	if query.Type != "" {
		filter.Type = domain.CheckInType(query.Type)
		if err := validateType(filter.Type); err != nil {
			return nil, err
		}
	}

	switch {
	case filter.Limit == 0:
		filter.Limit = DefaultListLimit
	case filter.Limit < 1:
		filter.Limit = 1
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	items, total, err := s.checkInRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	if items == nil {
		items = []*domain.CheckIn{}
	}

	return &CheckInPage{
		Items: items,
		Total: total,
		Limit: filter.Limit,
		Skip:  filter.Skip,
	}, nil
}

func (s *CheckInService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.CheckIn, error) {
	checkIn, err := s.checkInRepo.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCheckInNotFound
		}
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	return checkIn, nil
}

func (s *CheckInService) Update(ctx context.Context, userID, id uuid.UUID, input UpdateCheckInInput) (*domain.CheckIn, error) {
	fields := make(map[string]interface{})

	if input.Type != nil {
		if err := validateType(*input.Type); err != nil {
			return nil, err
		}
		fields["type"] = *input.Type
	}
	if input.Rating != nil {
		if err := validateRating(*input.Rating); err != nil {
			return nil, err
		}
		fields["rating"] = *input.Rating
		fields["flower_size"] = FlowerSize(*input.Rating)
	}
	if input.Emotion != nil {
		if err := validateEmotion(*input.Emotion); err != nil {
			return nil, err
		}
		fields["emotion"] = *input.Emotion
	}
	if input.Notes != nil {
		if err := validateNotes(*input.Notes); err != nil {
			return nil, err
		}
		fields["notes"] = *input.Notes
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.NewValidationError("Title is required")
		}
		fields["title"] = title
	}
	if input.AnimeTitle != nil {
		fields["anime_title"] = strings.TrimSpace(*input.AnimeTitle)
	}
	if input.AnimeID != nil {
		fields["anime_id"] = *input.AnimeID
	}
	if input.AnimeImage != nil {
		fields["anime_image"] = normalizeImage(input.AnimeImage)
	}
	if input.Episode != nil {
		fields["episode"] = *input.Episode
	}
	if input.Date != nil && !input.Date.IsZero() {
		fields["date"] = *input.Date
	}

	if len(fields) > 0 {
		if err := s.checkInRepo.UpdateFields(ctx, id, userID, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCheckInNotFound
			}
			return nil, fmt.Errorf("failed to update check-in: %w", err)
		}
	}

	updated, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.broadcaster.FlowerUpdated(userID, updated)
	return updated, nil
}

func (s *CheckInService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.checkInRepo.DeleteWithGarden(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCheckInNotFound
		}
		return fmt.Errorf("failed to delete check-in: %w", err)
	}

	s.broadcaster.FlowerRemoved(userID, id)
	return nil
}

func validateType(t domain.CheckInType) error {
	if !t.IsValid() {
		return domain.NewValidationError("Invalid type")
	}
	return nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 10 {
		return domain.NewValidationError("Rating must be between 1 and 10")
	}
	return nil
}

func validateEmotion(e domain.Emotion) error {
	if !e.IsValid() {
		return domain.NewValidationError("Invalid emotion")
	}
	return nil
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > domain.NotesMaxLength {
		return domain.NewValidationError("Notes must be at most 500 characters")
	}
	return nil
}

func normalizeImage(image *string) *string {
	if image == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*image)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func randomPosition() domain.Position {
	return domain.Position{
		X: rand.Float64() * 100,
		Y: rand.Float64() * 100,
	}
}
