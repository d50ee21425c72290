// Command admin manages account roles from the command line.
//
//	admin promote <username>
//	admin demote <username>
//	admin list-admins
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dom/anime-music-garden/internal/config"
	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/repository/postgres"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin promote|demote <username>")
	fmt.Fprintln(os.Stderr, "       admin list-admins")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	repos := postgres.NewRepositories(db)
	users := service.NewUserService(repos.User, repos.CheckIn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd := os.Args[1]; cmd {
	case "promote", "demote":
		if len(os.Args) != 3 {
			usage()
		}
		role := domain.RoleAdmin
		if cmd == "demote" {
			role = domain.RoleUser
		}

		user, err := users.SetRole(ctx, os.Args[2], role)
		if err != nil {
			log.Fatalf("failed to %s %q: %v", cmd, os.Args[2], err)
		}
		fmt.Printf("%s is now %s\n", user.Username, user.Role)

	case "list-admins":
		admins, err := users.ListByRole(ctx, domain.RoleAdmin)
		if err != nil {
			log.Fatalf("failed to list admins: %v", err)
		}
		if len(admins) == 0 {
			fmt.Println("No admins")
			return
		}
		for _, u := range admins {
			fmt.Printf("%s\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format(time.RFC3339))
		}

	default:
		usage()
	}
}
