// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	accountdomain "zetsuserv/internal/account/domain"
	accountrepo "zetsuserv/internal/account/repository"
	"zetsuserv/internal/config"
	"zetsuserv/internal/db"
	orderdomain "zetsuserv/internal/order/domain"
	orderrepo "zetsuserv/internal/order/repository"
	"zetsuserv/internal/security"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	accounts := accountrepo.NewPostgresRepository(conn)
	orders := orderrepo.NewPostgresRepository(conn)

	existing, err := accounts.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	if err := accounts.Create(ctx, &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        devEmail,
		Name:         "Dev User",
		PasswordHash: passwordHash,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		log.Fatalf("create dev account: %v", err)
	}

	order := &orderdomain.Order{
		ID:            uuid.New().String(),
		ClientName:    "Dev Client",
		ClientEmail:   devEmail,
		ProjectTitle:  "Sample Portfolio Site",
		ProjectType:   "static",
		PagesRequired: 5,
		Budget:        "500-1000",
		Details:       "Seed order for local development.",
		Status:        orderdomain.StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := orders.Create(ctx, order, orderdomain.DefaultSteps()); err != nil {
		log.Fatalf("create dev order: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devEmail, devPassword)
	fmt.Printf("Dev order code: %s (no access key issued yet; use the regenerate endpoint)\n", order.PublicCode())
}
