// Command seed-admin provisions an admin account. Registration only
// creates student accounts, so the first admin is bootstrapped here:
//
//	go run ./cmd/seed-admin -email registrar@school.edu -name "Registrar" -password changeme
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/internal/repository"
	"github.com/mnhs-portal/registrar-api/pkg/config"
	"github.com/mnhs-portal/registrar-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "admin email address")
	name := flag.String("name", "Registrar", "admin display name")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := repository.NewUserRepository(db)
	normalized := strings.ToLower(strings.TrimSpace(*email))

	if _, err := repo.FindByEmail(ctx, normalized); err == nil {
		log.Fatalf("user %s already exists", normalized)
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("failed to check existing user: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        normalized,
		PasswordHash: string(hash),
		FullName:     *name,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := repo.Create(ctx, user); err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}

	log.Printf("admin account created: %s (%s)", normalized, user.ID)
}
