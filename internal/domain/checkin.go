package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const NotesMaxLength = 500

// CheckInType is what was watched or listened to
type CheckInType string

const (
	CheckInTypeAnime   CheckInType = "anime"
	CheckInTypeOpening CheckInType = "opening"
	CheckInTypeEnding  CheckInType = "ending"
	CheckInTypeInsert  CheckInType = "insert"
)

var AllCheckInTypes = []CheckInType{
	CheckInTypeAnime,
	CheckInTypeOpening,
	CheckInTypeEnding,
	CheckInTypeInsert,
}

func (t CheckInType) IsValid() bool {
	switch t {
	case CheckInTypeAnime, CheckInTypeOpening, CheckInTypeEnding, CheckInTypeInsert:
		return true
	}
	return false
}

// IsMusic reports whether the type is a theme song rather than an episode
func (t CheckInType) IsMusic() bool {
	return t == CheckInTypeOpening || t == CheckInTypeEnding || t == CheckInTypeInsert
}

type Emotion string

const (
	EmotionHappy       Emotion = "happy"
	EmotionSad         Emotion = "sad"
	EmotionExcited     Emotion = "excited"
	EmotionCalm        Emotion = "calm"
	EmotionNostalgic   Emotion = "nostalgic"
	EmotionEnergetic   Emotion = "energetic"
	EmotionMelancholic Emotion = "melancholic"
	EmotionInspired    Emotion = "inspired"
)

var AllEmotions = []Emotion{
	EmotionHappy, EmotionSad, EmotionExcited, EmotionCalm,
	EmotionNostalgic, EmotionEnergetic, EmotionMelancholic, EmotionInspired,
}

func (e Emotion) IsValid() bool {
	for _, known := range AllEmotions {
		if e == known {
			return true
		}
	}
	return false
}

// Position places a flower in the garden; both axes are in [0, 100).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CheckIn struct {
	ID         uuid.UUID                    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID                    `json:"userId" gorm:"type:uuid;not null;index:idx_check_ins_user_date,priority:1"`
	Type       CheckInType                  `json:"type" gorm:"type:varchar(20);not null"`
	Title      string                       `json:"title" gorm:"not null"`
	AnimeTitle string                       `json:"animeTitle"`
	AnimeID    *int                         `json:"animeId"`
	AnimeImage *string                      `json:"animeImage"`
	Episode    *int                         `json:"episode"`
	Rating     int                          `json:"rating" gorm:"not null"`
	Emotion    Emotion                      `json:"emotion" gorm:"type:varchar(20);not null"`
	Notes      string                       `json:"notes" gorm:"size:500"`
	Date       time.Time                    `json:"date" gorm:"not null;index:idx_check_ins_user_date,priority:2,sort:desc"`
	FlowerSize float64                      `json:"flowerSize" gorm:"not null"`
	Position   datatypes.JSONType[Position] `json:"position"`
	CreatedAt  time.Time                    `json:"createdAt"`
	UpdatedAt  time.Time                    `json:"updatedAt"`
}

func (c *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CheckInFilter selects one page of a user's check-ins
type CheckInFilter struct {
	UserID uuid.UUID
	Type   CheckInType
	Limit  int
	Skip   int
}

// FlowerSummary is the compact flower shown on the profile page
type FlowerSummary struct {
	ID         uuid.UUID   `json:"id"`
	Title      string      `json:"title"`
	Type       CheckInType `json:"type"`
	Rating     int         `json:"rating"`
	Emotion    Emotion     `json:"emotion"`
	Date       time.Time   `json:"date"`
	FlowerSize float64     `json:"flowerSize"`
	Position   Position    `json:"position"`
}

func (c *CheckIn) Summary() FlowerSummary {
	return FlowerSummary{
		ID:         c.ID,
		Title:      c.Title,
		Type:       c.Type,
		Rating:     c.Rating,
		Emotion:    c.Emotion,
		Date:       c.Date,
		FlowerSize: c.FlowerSize,
		Position:   c.Position.Data(),
	}
}
