// seed inserts development principals for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"sessiongate/internal/config"
	"sessiongate/internal/db"
	"sessiongate/internal/security"
	userdomain "sessiongate/internal/user/domain"
	userrepo "sessiongate/internal/user/repository"
)

const (
	adminEmail  = "admin@example.com"
	userEmail   = "dev@example.com"
	devPassword = "devPassw0rd"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	repo := userrepo.NewPostgresRepository(pool)

	existing, err := repo.GetByIdentifier(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	seeds := []*userdomain.Principal{
		{
			ID:           uuid.New().String(),
			Username:     "admin",
			Email:        adminEmail,
			DisplayName:  "Dev Admin",
			Roles:        []string{"admin"},
			PasswordHash: passwordHash,
			Status:       userdomain.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			Username:     "dev",
			Email:        userEmail,
			DisplayName:  "Dev User",
			Roles:        []string{"user"},
			PasswordHash: passwordHash,
			Status:       userdomain.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	for _, p := range seeds {
		if err := repo.Create(ctx, p); err != nil {
			log.Fatalf("create %s: %v", p.Username, err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", adminEmail, devPassword)
	fmt.Printf("User login: %s / %s\n", userEmail, devPassword)
}
