package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 20, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "https://graphql.anilist.co", cfg.AniListURL)
	assert.Equal(t, "https://api.jikan.moe/v4", cfg.JikanURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("JIKAN_URL", "http://jikan.local/v4/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://jikan.local/v4", cfg.JikanURL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:              "8080",
			Environment:       "development",
			JWTSecret:         "secret",
			AccessTokenTTL:    time.Minute,
			RefreshTokenTTL:   time.Hour,
			RateLimitEnabled:  true,
			RateLimitRequests: 10,
			RateLimitWindow:   time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid development config", mutate: func(c *Config) {}},
		{
			name:    "short secret in production",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: "at least 32 characters",
		},
		{
			name: "default secret in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = defaultJWTSecret
			},
			wantErr: "default value",
		},
		{
			name: "long secret in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "0123456789abcdef0123456789abcdef"
			},
		},
		{
			name:    "zero access ttl",
			mutate:  func(c *Config) { c.AccessTokenTTL = 0 },
			wantErr: "ACCESS_TOKEN_TTL",
		},
		{
			name:    "rate limit without window",
			mutate:  func(c *Config) { c.RateLimitWindow = 0 },
			wantErr: "RATE_LIMIT",
		},
		{
			name: "rate limit disabled ignores window",
			mutate: func(c *Config) {
				c.RateLimitEnabled = false
				c.RateLimitWindow = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
