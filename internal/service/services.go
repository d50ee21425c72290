package service

import (
	"github.com/dom/anime-music-garden/internal/config"
	"github.com/dom/anime-music-garden/internal/repository"
)

type Services struct {
	Auth    *AuthService
	CheckIn *CheckInService
	User    *UserService
}

func NewServices(repos *repository.Repositories, broadcaster Broadcaster, cfg *config.Config) *Services {
	return &Services{
		Auth:    NewAuthService(repos.User, repos.RefreshToken, cfg),
		CheckIn: NewCheckInService(repos.CheckIn, broadcaster),
		User:    NewUserService(repos.User, repos.CheckIn),
	}
}
