package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/repository/postgres"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/dom/anime-music-garden/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type broadcastEvent struct {
	kind      string
	userID    uuid.UUID
	checkInID uuid.UUID
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) record(kind string, userID, checkInID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{kind: kind, userID: userID, checkInID: checkInID})
}

func (b *recordingBroadcaster) NewFlower(userID uuid.UUID, checkIn *domain.CheckIn) {
	b.record("new-flower", userID, checkIn.ID)
}

func (b *recordingBroadcaster) FlowerUpdated(userID uuid.UUID, checkIn *domain.CheckIn) {
	b.record("flower-updated", userID, checkIn.ID)
}

func (b *recordingBroadcaster) FlowerRemoved(userID uuid.UUID, checkInID uuid.UUID) {
	b.record("flower-removed", userID, checkInID)
}

func (b *recordingBroadcaster) Events() []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastEvent(nil), b.events...)
}

func newCheckInService(t *testing.T) (*service.CheckInService, *recordingBroadcaster, *gorm.DB) {
	t.Helper()
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	broadcaster := &recordingBroadcaster{}
	return service.NewCheckInService(repos.CheckIn, broadcaster), broadcaster, testDB.DB
}

func totalCheckIns(t *testing.T, db *gorm.DB, userID uuid.UUID) int {
	t.Helper()
	var user domain.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	return user.TotalCheckIns
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestFlowerSize(t *testing.T) {
	tests := []struct {
		rating int
		want   float64
	}{
		{1, 0.65},
		{4, 1.1},
		{5, 1.25},
		{8, 1.7},
		{10, 2.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, service.FlowerSize(tt.rating), 1e-9, "rating %d", tt.rating)
	}
}

func TestCheckInService_Create(t *testing.T) {
	svc, broadcaster, db := newCheckInService(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, db)

	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return fixed })

	tests := []struct {
		name      string
		input     service.CreateCheckInInput
		wantErr   string
		wantTitle string
	}{
		{
			name: "opening",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeOpening, Title: " Gurenge ", AnimeTitle: "Demon Slayer",
				Rating: 9, Emotion: domain.EmotionEnergetic,
			},
			wantTitle: "Gurenge",
		},
		{
			name: "anime falls back to anime title",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeAnime, AnimeTitle: "Frieren", Episode: intPtr(12),
				Rating: 10, Emotion: domain.EmotionCalm,
			},
			wantTitle: "Frieren",
		},
		{
			name: "music needs a title",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeEnding, AnimeTitle: "Frieren",
				Rating: 7, Emotion: domain.EmotionSad,
			},
			wantErr: "Title is required for music types",
		},
		{
			name: "anime needs some title",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeAnime, Rating: 7, Emotion: domain.EmotionSad,
			},
			wantErr: "Title is required",
		},
		{
			name: "type is checked first",
			input: service.CreateCheckInInput{
				Type: "movie", Rating: 0, Emotion: "angry",
			},
			wantErr: "Invalid type",
		},
		{
			name: "rating before emotion",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeOpening, Title: "x", Rating: 11, Emotion: "angry",
			},
			wantErr: "Rating must be between 1 and 10",
		},
		{
			name: "emotion",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeOpening, Title: "x", Rating: 5, Emotion: "angry",
			},
			wantErr: "Invalid emotion",
		},
		{
			name: "notes too long",
			input: service.CreateCheckInInput{
				Type: domain.CheckInTypeOpening, Title: "x", Rating: 5, Emotion: domain.EmotionHappy,
				Notes: strings.Repeat("n", 501),
			},
			wantErr: "Notes must be at most 500 characters",
		},
	}

	created := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkIn, err := svc.Create(ctx, user.ID, tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}

			require.NoError(t, err)
			created++
			assert.Equal(t, tt.wantTitle, checkIn.Title)
			assert.Equal(t, user.ID, checkIn.UserID)
			assert.True(t, fixed.Equal(checkIn.Date))
			assert.InDelta(t, service.FlowerSize(tt.input.Rating), checkIn.FlowerSize, 1e-9)

			pos := checkIn.Position.Data()
			assert.GreaterOrEqual(t, pos.X, 0.0)
			assert.Less(t, pos.X, 100.0)
			assert.GreaterOrEqual(t, pos.Y, 0.0)
			assert.Less(t, pos.Y, 100.0)

			assert.Equal(t, created, totalCheckIns(t, db, user.ID))
		})
	}

	events := broadcaster.Events()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "new-flower", e.kind)
		assert.Equal(t, user.ID, e.userID)
	}
}

func TestCheckInService_CreateExplicitDate(t *testing.T) {
	svc, _, db := newCheckInService(t)
	user, _ := testutil.NewUserBuilder().Build(t, db)

	date := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	checkIn, err := svc.Create(context.Background(), user.ID, service.CreateCheckInInput{
		Type: domain.CheckInTypeInsert, Title: "Zoltraak", Rating: 6, Emotion: domain.EmotionInspired,
		Date: &date, AnimeImage: strPtr("   "),
	})
	require.NoError(t, err)
	assert.True(t, date.Equal(checkIn.Date))
	assert.Nil(t, checkIn.AnimeImage)
}

func TestCheckInService_CreateUnknownUser(t *testing.T) {
	svc, broadcaster, _ := newCheckInService(t)

	_, err := svc.Create(context.Background(), uuid.New(), service.CreateCheckInInput{
		Type: domain.CheckInTypeOpening, Title: "Unravel", Rating: 8, Emotion: domain.EmotionSad,
	})
	assert.ErrorIs(t, err, service.ErrUserNotFound)
	assert.Empty(t, broadcaster.Events())
}

func TestCheckInService_List(t *testing.T) {
	svc, _, db := newCheckInService(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, db)
	other, _ := testutil.NewUserBuilder().Build(t, db)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		testutil.NewCheckInBuilder(user).WithDate(base.AddDate(0, 0, i)).WithTitle("op").Build(t, db)
	}
	testutil.NewCheckInBuilder(user).WithType(domain.CheckInTypeAnime).WithDate(base.AddDate(0, 1, 0)).Build(t, db)
	testutil.NewCheckInBuilder(other).Build(t, db)

	tests := []struct {
		name      string
		query     service.ListCheckInsQuery
		wantLen   int
		wantTotal int64
		wantLimit int
		wantSkip  int
		wantErr   bool
	}{
		{"defaults", service.ListCheckInsQuery{}, 6, 6, 50, 0, false},
		{"paged", service.ListCheckInsQuery{Limit: 2, Skip: 1}, 2, 6, 2, 1, false},
		{"type filter", service.ListCheckInsQuery{Type: "opening"}, 5, 5, 50, 0, false},
		{"limit too large", service.ListCheckInsQuery{Limit: 1000}, 6, 6, 100, 0, false},
		{"negative limit", service.ListCheckInsQuery{Limit: -5}, 1, 6, 1, 0, false},
		{"negative skip", service.ListCheckInsQuery{Skip: -3}, 6, 6, 50, 0, false},
		{"skip past end", service.ListCheckInsQuery{Skip: 10}, 0, 6, 50, 10, false},
		{"invalid type", service.ListCheckInsQuery{Type: "movie"}, 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(ctx, user.ID, tt.query)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantLen)
			assert.NotNil(t, page.Items)
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantSkip, page.Skip)
			for _, item := range page.Items {
				assert.Equal(t, user.ID, item.UserID)
			}
		})
	}

	t.Run("newest first", func(t *testing.T) {
		page, err := svc.List(ctx, user.ID, service.ListCheckInsQuery{})
		require.NoError(t, err)
		for i := 1; i < len(page.Items); i++ {
			assert.False(t, page.Items[i].Date.After(page.Items[i-1].Date))
		}
		assert.Equal(t, domain.CheckInTypeAnime, page.Items[0].Type)
	})
}

func TestCheckInService_OwnerScoping(t *testing.T) {
	svc, broadcaster, db := newCheckInService(t)
	ctx := context.Background()
	owner, _ := testutil.NewUserBuilder().Build(t, db)
	intruder, _ := testutil.NewUserBuilder().Build(t, db)
	checkIn := testutil.NewCheckInBuilder(owner).Build(t, db)

	_, err := svc.Get(ctx, intruder.ID, checkIn.ID)
	assert.ErrorIs(t, err, service.ErrCheckInNotFound)

	_, err = svc.Update(ctx, intruder.ID, checkIn.ID, service.UpdateCheckInInput{Rating: intPtr(1)})
	assert.ErrorIs(t, err, service.ErrCheckInNotFound)

	err = svc.Delete(ctx, intruder.ID, checkIn.ID)
	assert.ErrorIs(t, err, service.ErrCheckInNotFound)

	got, err := svc.Get(ctx, owner.ID, checkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Rating)
	assert.Equal(t, 1, totalCheckIns(t, db, owner.ID))
	assert.Empty(t, broadcaster.Events())
}

func TestCheckInService_Update(t *testing.T) {
	svc, broadcaster, db := newCheckInService(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, db)
	checkIn := testutil.NewCheckInBuilder(user).Build(t, db)

	t.Run("rating resizes the flower and keeps its position", func(t *testing.T) {
		updated, err := svc.Update(ctx, user.ID, checkIn.ID, service.UpdateCheckInInput{
			Rating: intPtr(4),
			Notes:  strPtr("grew on me"),
		})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.Rating)
		assert.InDelta(t, 1.1, updated.FlowerSize, 1e-9)
		assert.Equal(t, "grew on me", updated.Notes)
		assert.Equal(t, checkIn.Position.Data(), updated.Position.Data())
		assert.Equal(t, "Unravel", updated.Title)
	})

	t.Run("empty update still broadcasts", func(t *testing.T) {
		updated, err := svc.Update(ctx, user.ID, checkIn.ID, service.UpdateCheckInInput{})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.Rating)
	})

	t.Run("validation", func(t *testing.T) {
		bad := domain.Emotion("angry")
		_, err := svc.Update(ctx, user.ID, checkIn.ID, service.UpdateCheckInInput{Emotion: &bad})
		assert.EqualError(t, err, "Invalid emotion")

		_, err = svc.Update(ctx, user.ID, checkIn.ID, service.UpdateCheckInInput{Title: strPtr("  ")})
		assert.EqualError(t, err, "Title is required")

		_, err = svc.Update(ctx, user.ID, checkIn.ID, service.UpdateCheckInInput{Rating: intPtr(0)})
		assert.EqualError(t, err, "Rating must be between 1 and 10")
	})

	events := broadcaster.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "flower-updated", events[0].kind)
	assert.Equal(t, checkIn.ID, events[0].checkInID)
}

func TestCheckInService_Delete(t *testing.T) {
	svc, broadcaster, db := newCheckInService(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, db)
	first := testutil.NewCheckInBuilder(user).Build(t, db)
	second := testutil.NewCheckInBuilder(user).Build(t, db)

	require.NoError(t, svc.Delete(ctx, user.ID, first.ID))
	assert.Equal(t, 1, totalCheckIns(t, db, user.ID))

	err := svc.Delete(ctx, user.ID, first.ID)
	assert.ErrorIs(t, err, service.ErrCheckInNotFound)
	assert.Equal(t, 1, totalCheckIns(t, db, user.ID))

	require.NoError(t, svc.Delete(ctx, user.ID, second.ID))
	assert.Equal(t, 0, totalCheckIns(t, db, user.ID))

	events := broadcaster.Events()
	require.Len(t, events, 2)
	assert.Equal(t, broadcastEvent{kind: "flower-removed", userID: user.ID, checkInID: first.ID}, events[0])
}

func TestCheckInService_ConcurrentDelete(t *testing.T) {
	svc, broadcaster, db := newCheckInService(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, db)
	testutil.NewCheckInBuilder(user).Build(t, db)
	checkIn := testutil.NewCheckInBuilder(user).Build(t, db)

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Delete(ctx, user.ID, checkIn.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, service.ErrCheckInNotFound)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, totalCheckIns(t, db, user.ID))
	assert.Len(t, broadcaster.Events(), 1)
}
