package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/testutil"
	"github.com/dom/anime-music-garden/internal/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkInEnvelope struct {
	Message string         `json:"message"`
	CheckIn domain.CheckIn `json:"checkIn"`
}

type checkInList struct {
	CheckIns []domain.CheckIn `json:"checkIns"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Skip     int              `json:"skip"`
}

func TestCheckInHandler_Create(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, session := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	tests := []struct {
		name            string
		request         map[string]interface{}
		expectedStatus  int
		expectedMessage string
		checkResponse   func(*testing.T, domain.CheckIn)
	}{
		{
			name: "opening check-in",
			request: map[string]interface{}{
				"type":       "opening",
				"title":      "  Gurenge  ",
				"animeTitle": "Demon Slayer",
				"rating":     10,
				"emotion":    "energetic",
				"animeImage": "   ",
				"flowerSize": 99,
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, c domain.CheckIn) {
				assert.Equal(t, "Gurenge", c.Title)
				assert.Equal(t, 2.0, c.FlowerSize)
				assert.Nil(t, c.AnimeImage)
				pos := c.Position.Data()
				assert.True(t, pos.X >= 0 && pos.X < 100)
				assert.True(t, pos.Y >= 0 && pos.Y < 100)
			},
		},
		{
			name: "anime falls back to anime title",
			request: map[string]interface{}{
				"type":       "anime",
				"animeTitle": "Frieren",
				"episode":    3,
				"rating":     1,
				"emotion":    "calm",
				"date":       "2024-03-01",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, c domain.CheckIn) {
				assert.Equal(t, "Frieren", c.Title)
				assert.InDelta(t, 0.65, c.FlowerSize, 1e-9)
				require.NotNil(t, c.Episode)
				assert.Equal(t, 3, *c.Episode)
				assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), c.Date.UTC())
			},
		},
		{
			name:            "music type without title",
			request:         map[string]interface{}{"type": "ending", "animeTitle": "Frieren", "rating": 5, "emotion": "sad"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Title is required for music types",
		},
		{
			name:            "invalid type",
			request:         map[string]interface{}{"type": "movie", "title": "x", "rating": 5, "emotion": "sad"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid type",
		},
		{
			name:            "rating out of range",
			request:         map[string]interface{}{"type": "opening", "title": "x", "rating": 11, "emotion": "sad"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Rating must be between 1 and 10",
		},
		{
			name:            "invalid emotion",
			request:         map[string]interface{}{"type": "opening", "title": "x", "rating": 5, "emotion": "angry"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid emotion",
		},
		{
			name:            "notes too long",
			request:         map[string]interface{}{"type": "opening", "title": "x", "rating": 5, "emotion": "sad", "notes": strings.Repeat("n", 501)},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Notes must be at most 500 characters",
		},
		{
			name:            "invalid date",
			request:         map[string]interface{}{"type": "opening", "title": "x", "rating": 5, "emotion": "sad", "date": "yesterday"},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, http.MethodPost, ts.APIURL("/checkins"), session.Token, tt.request)

			if tt.expectedMessage != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedMessage)
				return
			}

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			var result checkInEnvelope
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Equal(t, "Check-in created successfully", result.Message)
			assert.NotEqual(t, uuid.Nil, result.CheckIn.ID)
			tt.checkResponse(t, result.CheckIn)
		})
	}

	t.Run("requires auth", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPost, ts.APIURL("/checkins"), "", map[string]interface{}{"type": "anime"})
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "No token provided, authorization denied")
	})
}

func TestCheckInHandler_List(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, session := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	other, _ := testutil.NewUserBuilder().Build(t, ts.DB.DB)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		testutil.NewCheckInBuilder(user).WithDate(base.AddDate(0, 0, i)).Build(t, ts.DB.DB)
	}
	testutil.NewCheckInBuilder(user).WithType(domain.CheckInTypeAnime).WithTitle("Mushishi").
		WithDate(base.AddDate(0, 0, 10)).Build(t, ts.DB.DB)
	testutil.NewCheckInBuilder(other).Build(t, ts.DB.DB)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantTotal int64
		wantLimit int
		wantSkip  int
	}{
		{name: "defaults", query: "", wantCount: 6, wantTotal: 6, wantLimit: 50},
		{name: "paged", query: "?limit=2&skip=1", wantCount: 2, wantTotal: 6, wantLimit: 2, wantSkip: 1},
		{name: "by type", query: "?type=anime", wantCount: 1, wantTotal: 1, wantLimit: 50},
		{name: "limit clamped high", query: "?limit=1000", wantCount: 6, wantTotal: 6, wantLimit: 100},
		{name: "limit clamped low", query: "?limit=-5", wantCount: 1, wantTotal: 6, wantLimit: 1},
		{name: "negative skip", query: "?skip=-3", wantCount: 6, wantTotal: 6, wantLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, http.MethodGet, ts.APIURL("/checkins"+tt.query), session.Token, nil)
			testutil.AssertStatusCode(t, resp, http.StatusOK)

			var result checkInList
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Len(t, result.CheckIns, tt.wantCount)
			assert.Equal(t, tt.wantTotal, result.Total)
			assert.Equal(t, tt.wantLimit, result.Limit)
			assert.Equal(t, tt.wantSkip, result.Skip)
			for _, c := range result.CheckIns {
				assert.Equal(t, user.ID, c.UserID)
			}
		})
	}

	t.Run("newest first", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/checkins"), session.Token, nil)
		var result checkInList
		testutil.AssertJSONResponse(t, resp, &result)
		require.NotEmpty(t, result.CheckIns)
		assert.Equal(t, "Mushishi", result.CheckIns[0].Title)
		for i := 1; i < len(result.CheckIns); i++ {
			assert.False(t, result.CheckIns[i].Date.After(result.CheckIns[i-1].Date))
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/checkins?type=movie"), session.Token, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Invalid type")
	})

	t.Run("non numeric limit", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/checkins?limit=ten"), session.Token, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Invalid limit")
	})
}

func TestCheckInHandler_OwnerScoping(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceSession := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, bobSession := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	checkIn := testutil.NewCheckInBuilder(alice).Build(t, ts.DB.DB)
	url := ts.APIURL("/checkins/" + checkIn.ID.String())

	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
	}{
		{name: "get foreign", method: http.MethodGet, url: url},
		{name: "update foreign", method: http.MethodPut, url: url, body: map[string]interface{}{"rating": 1}},
		{name: "delete foreign", method: http.MethodDelete, url: url},
		{name: "malformed id", method: http.MethodGet, url: ts.APIURL("/checkins/not-a-uuid")},
		{name: "unknown id", method: http.MethodGet, url: ts.APIURL("/checkins/" + uuid.NewString())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, tt.method, tt.url, bobSession.Token, tt.body)
			testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "Check-in not found")
		})
	}

	// Alice's record is untouched
	resp := testutil.Do(t, http.MethodGet, url, aliceSession.Token, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var result checkInEnvelope
	testutil.AssertJSONResponse(t, resp, &result)
	assert.Equal(t, checkIn.Rating, result.CheckIn.Rating)
}

func TestCheckInHandler_UpdateAndDelete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, session := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	checkIn := testutil.NewCheckInBuilder(user).WithRating(4).Build(t, ts.DB.DB)
	url := ts.APIURL("/checkins/" + checkIn.ID.String())

	t.Run("notes only keeps size", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPut, url, session.Token, map[string]interface{}{"notes": "goosebumps"})
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var result checkInEnvelope
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, "Check-in updated successfully", result.Message)
		assert.Equal(t, "goosebumps", result.CheckIn.Notes)
		assert.InDelta(t, 1.1, result.CheckIn.FlowerSize, 1e-9)
	})

	t.Run("rating recomputes size and keeps position", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPut, url, session.Token, map[string]interface{}{"rating": 10})
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var result checkInEnvelope
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, 10, result.CheckIn.Rating)
		assert.Equal(t, 2.0, result.CheckIn.FlowerSize)
		assert.Equal(t, checkIn.Position.Data(), result.CheckIn.Position.Data())
		assert.Equal(t, user.ID, result.CheckIn.UserID)
	})

	t.Run("invalid update", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPut, url, session.Token, map[string]interface{}{"emotion": "bored"})
		testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "Invalid emotion")
	})

	t.Run("delete", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodDelete, url, session.Token, nil)
		testutil.AssertMessageResponse(t, resp, http.StatusOK, "Check-in deleted successfully")

		resp = testutil.Do(t, http.MethodDelete, url, session.Token, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "Check-in not found")

		var stored domain.User
		require.NoError(t, ts.DB.DB.First(&stored, "id = ?", user.ID).Error)
		assert.Equal(t, 0, stored.TotalCheckIns)
	})
}

func TestCheckInHandler_BroadcastsToGarden(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, session := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	_, otherSession := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	owner := testutil.NewWSClient(t, ts.WebSocketURL(session.Token))
	owner.JoinGarden(user.ID.String())
	owner.ExpectMessage(websocket.MessageTypeGardenJoined, 2*time.Second)

	// Another user trying to watch this garden gets nothing
	snoop := testutil.NewWSClient(t, ts.WebSocketURL(otherSession.Token))
	snoop.JoinGarden(user.ID.String())

	resp := testutil.Do(t, http.MethodPost, ts.APIURL("/checkins"), session.Token, map[string]interface{}{
		"type": "insert", "title": "Kataware Doki", "rating": 9, "emotion": "melancholic",
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var created checkInEnvelope
	testutil.AssertJSONResponse(t, resp, &created)

	flower := owner.ExpectFlower(websocket.MessageTypeNewFlower, 2*time.Second)
	assert.Equal(t, created.CheckIn.ID.String(), flower["id"])
	assert.Equal(t, "Kataware Doki", flower["title"])

	url := ts.APIURL("/checkins/" + created.CheckIn.ID.String())
	testutil.Do(t, http.MethodPut, url, session.Token, map[string]interface{}{"rating": 3})
	flower = owner.ExpectFlower(websocket.MessageTypeFlowerUpdated, 2*time.Second)
	assert.EqualValues(t, 3, flower["rating"])

	testutil.Do(t, http.MethodDelete, url, session.Token, nil)
	msg := owner.ExpectMessage(websocket.MessageTypeFlowerRemoved, 2*time.Second)
	assert.Contains(t, string(msg.Payload), created.CheckIn.ID.String())

	snoop.ExpectNoMessage(300 * time.Millisecond)
}
