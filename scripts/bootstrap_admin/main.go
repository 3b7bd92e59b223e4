// Command bootstrap_admin creates the initial SUPERADMIN account.
// Self-service registration only produces student accounts, so a fresh
// deployment runs this once before the API is useful.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/repository"
	"github.com/uniclinic/medsched-api/pkg/config"
	"github.com/uniclinic/medsched-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "admin email address")
	fullName := flag.String("name", "Clinic Administrator", "admin display name")
	password := flag.String("password", "", "initial password (min 8 characters)")
	role := flag.String("role", string(models.RoleSuperAdmin), "SUPERADMIN or ADMIN")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if len(*password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}
	if *role != string(models.RoleSuperAdmin) && *role != string(models.RoleAdmin) {
		log.Fatalf("unsupported role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)

	taken, err := users.ExistsByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("email lookup failed: %v", err)
	}
	if taken {
		log.Fatalf("an account already exists for %s", *email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("password hashing failed: %v", err)
	}

	user := &models.User{
		Email:        *email,
		PasswordHash: string(hash),
		FullName:     *fullName,
		Role:         models.UserRole(*role),
		Active:       true,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("user creation failed: %v", err)
	}

	fmt.Printf("created %s account %s (%s)\n", user.Role, user.Email, user.ID)
}
