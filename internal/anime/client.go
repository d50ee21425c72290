// Package anime looks up anime metadata on AniList and theme songs on Jikan.
package anime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	searchPageSize    = 10
	synopsisMaxLength = 200
	// Ids above this are AniList ids that need translating before Jikan.
	anilistIDThreshold = 100000
)

var (
	ErrUpstream = errors.New("anime provider unavailable")
	ErrNotFound = errors.New("anime not found")
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Cache is the subset of a JSON cache the client needs. Misses and errors
// fall through to the providers.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Options struct {
	AniListURL string
	JikanURL   string
	Timeout    time.Duration
	CacheTTL   time.Duration
}

type Client struct {
	httpClient *http.Client
	anilistURL string
	jikanURL   string
	cache      Cache
	cacheTTL   time.Duration
}

func NewClient(opts Options, cache Cache) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		anilistURL: opts.AniListURL,
		jikanURL:   strings.TrimRight(opts.JikanURL, "/"),
		cache:      cache,
		cacheTTL:   opts.CacheTTL,
	}
}

type Anime struct {
	MalID         int         `json:"malId"`
	AniListID     int         `json:"anilistId"`
	Title         string      `json:"title"`
	TitleEnglish  string      `json:"titleEnglish"`
	TitleJapanese string      `json:"titleJapanese"`
	Image         string      `json:"image"`
	BannerImage   *string     `json:"bannerImage"`
	Synopsis      string      `json:"synopsis"`
	Score         *float64    `json:"score"`
	Episodes      *int        `json:"episodes"`
	Year          *int        `json:"year"`
	Genres        []string    `json:"genres"`
	Studios       []string    `json:"studios"`
	Characters    []Character `json:"characters,omitempty"`
}

type Character struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	NameNative string `json:"nameNative"`
	Image      string `json:"image"`
}

type Soundtrack struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Number int    `json:"number"`
}

const mediaFields = `
	id
	idMal
	title { romaji english native }
	coverImage { large medium }
	bannerImage
	description
	averageScore
	episodes
	startDate { year }
	genres
	studios { nodes { name } }
`

var searchQuery = `
query ($search: String, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {` + mediaFields + `}
  }
}`

var detailQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {` + mediaFields + `
    characters(perPage: 10) {
      nodes {
        id
        name { full native }
        image { large medium }
      }
    }
  }
}`

type mediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type image struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

type media struct {
	ID           int        `json:"id"`
	IDMal        *int       `json:"idMal"`
	Title        mediaTitle `json:"title"`
	CoverImage   *image     `json:"coverImage"`
	BannerImage  *string    `json:"bannerImage"`
	Description  string     `json:"description"`
	AverageScore *int       `json:"averageScore"`
	Episodes     *int       `json:"episodes"`
	StartDate    *struct {
		Year *int `json:"year"`
	} `json:"startDate"`
	Genres  []string `json:"genres"`
	Studios *struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
	Characters *struct {
		Nodes []struct {
			ID   int `json:"id"`
			Name struct {
				Full   string `json:"full"`
				Native string `json:"native"`
			} `json:"name"`
			Image *image `json:"image"`
		} `json:"nodes"`
	} `json:"characters"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Search returns up to ten AniList matches for the query.
func (c *Client) Search(ctx context.Context, query string) ([]Anime, error) {
	cacheKey := "search:" + strings.ToLower(strings.TrimSpace(query))
	var cached []Anime
	if c.fromCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	var data struct {
		Page struct {
			Media []media `json:"media"`
		} `json:"Page"`
	}
	err := c.graphQL(ctx, searchQuery, map[string]interface{}{
		"search":  query,
		"page":    1,
		"perPage": searchPageSize,
	}, &data)
	if err != nil {
		return nil, err
	}

	results := make([]Anime, 0, len(data.Page.Media))
	for _, m := range data.Page.Media {
		a := m.toAnime()
		a.Synopsis = truncate(a.Synopsis, synopsisMaxLength)
		results = append(results, a)
	}

	c.toCache(ctx, cacheKey, results)
	return results, nil
}

// GetByID returns full details, including up to ten characters.
func (c *Client) GetByID(ctx context.Context, anilistID int) (*Anime, error) {
	cacheKey := "detail:" + strconv.Itoa(anilistID)
	var cached Anime
	if c.fromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var data struct {
		Media *media `json:"Media"`
	}
	if err := c.graphQL(ctx, detailQuery, map[string]interface{}{"id": anilistID}, &data); err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, ErrNotFound
	}

	a := data.Media.toAnime()
	a.Characters = []Character{}
	if data.Media.Characters != nil {
		for _, ch := range data.Media.Characters.Nodes {
			a.Characters = append(a.Characters, Character{
				ID:         ch.ID,
				Name:       ch.Name.Full,
				NameNative: ch.Name.Native,
				Image:      ch.Image.best(),
			})
		}
	}

	c.toCache(ctx, cacheKey, a)
	return &a, nil
}

func (c *Client) Characters(ctx context.Context, anilistID int) ([]Character, error) {
	a, err := c.GetByID(ctx, anilistID)
	if err != nil {
		return nil, err
	}
	return a.Characters, nil
}

// Soundtrack lists opening and ending themes from Jikan. It never fails:
// provider problems yield an empty list.
func (c *Client) Soundtrack(ctx context.Context, id int) []Soundtrack {
	malID := id
	if id > anilistIDThreshold {
		if a, err := c.GetByID(ctx, id); err == nil && a.MalID > 0 {
			malID = a.MalID
		}
	}

	cacheKey := "soundtrack:" + strconv.Itoa(malID)
	var cached []Soundtrack
	if c.fromCache(ctx, cacheKey, &cached) {
		return cached
	}

	tracks, err := c.fetchThemes(ctx, malID)
	if err != nil {
		log.Printf("ERROR [anime.Soundtrack] mal_id=%d: %v", malID, err)
		return []Soundtrack{}
	}

	c.toCache(ctx, cacheKey, tracks)
	return tracks
}

func (c *Client) fetchThemes(ctx context.Context, malID int) ([]Soundtrack, error) {
	url := fmt.Sprintf("%s/anime/%d/themes", c.jikanURL, malID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jikan returned status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Openings []string `json:"openings"`
			Endings  []string `json:"endings"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	tracks := make([]Soundtrack, 0, len(body.Data.Openings)+len(body.Data.Endings))
	for i, title := range body.Data.Openings {
		tracks = append(tracks, Soundtrack{Type: "opening", Title: title, Number: i + 1})
	}
	for i, title := range body.Data.Endings {
		tracks = append(tracks, Soundtrack{Type: "ending", Title: title, Number: i + 1})
	}
	return tracks, nil
}

func (c *Client) graphQL(ctx context.Context, query string, variables map[string]interface{}, dst interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.anilistURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var body graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	if len(body.Errors) > 0 {
		// AniList answers unknown ids with a 404 and a GraphQL error
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s", ErrUpstream, body.Errors[0].Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.Unmarshal(body.Data, dst); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrUpstream, err)
	}
	return nil
}

func (c *Client) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if c.cache == nil {
		return false
	}
	found, err := c.cache.GetJSON(ctx, key, dst)
	if err != nil {
		log.Printf("ERROR [anime.fromCache] key=%s: %v", key, err)
		return false
	}
	return found
}

func (c *Client) toCache(ctx context.Context, key string, value interface{}) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.cache.SetJSON(ctx, key, value, c.cacheTTL); err != nil {
		log.Printf("ERROR [anime.toCache] key=%s: %v", key, err)
	}
}

func (m *media) toAnime() Anime {
	a := Anime{
		MalID:         m.ID,
		AniListID:     m.ID,
		Title:         firstNonEmpty(m.Title.Romaji, m.Title.English, m.Title.Native),
		TitleEnglish:  firstNonEmpty(m.Title.English, m.Title.Romaji),
		TitleJapanese: m.Title.Native,
		Image:         m.CoverImage.best(),
		BannerImage:   m.BannerImage,
		Synopsis:      htmlTag.ReplaceAllString(m.Description, ""),
		Episodes:      m.Episodes,
		Genres:        []string{},
		Studios:       []string{},
	}
	if m.IDMal != nil && *m.IDMal > 0 {
		a.MalID = *m.IDMal
	}
	if m.AverageScore != nil && *m.AverageScore > 0 {
		score := float64(*m.AverageScore) / 10
		a.Score = &score
	}
	if m.StartDate != nil {
		a.Year = m.StartDate.Year
	}
	if m.Genres != nil {
		a.Genres = m.Genres
	}
	if m.Studios != nil {
		for _, s := range m.Studios.Nodes {
			a.Studios = append(a.Studios, s.Name)
		}
	}
	return a
}

func (i *image) best() string {
	if i == nil {
		return ""
	}
	return firstNonEmpty(i.Large, i.Medium)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
