package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/flashcording/agent-orchestrator/internal/config"
	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/models"
)

const (
	// MinPasswordLength is the minimum password length requirement
	MinPasswordLength = 8
	// BcryptCost is the cost factor for bcrypt hashing (10 = ~100ms)
	BcryptCost = 10
)

var (
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

func main() {
	// Parse command-line flags
	username := flag.String("username", "", "Display name of the user (required)")
	email := flag.String("email", "", "Email address (required)")
	password := flag.String("password", "", "Password (required, min 8 chars)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize OpenTelemetry for observability
	if err := initTracer(); err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	// Validate inputs
	if err := validateInputs(*username, *email, *password); err != nil {
		log.Fatalf("Validation error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatalf("No database configured (set FLASH_DATABASE__URL)")
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// Create user
	user, err := createUser(ctx, store, *username, *email, *password)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	log.Printf("✓ Successfully created user")
	log.Printf("  ID: %s", user.ID)
	log.Printf("  Username: %s", user.Username)
	log.Printf("  Email: %s", user.Email)
	log.Printf("  Level: %d", user.Level)
}

// validateInputs validates user input according to security requirements
func validateInputs(username, email, password string) error {
	// Validate username
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required and cannot be empty")
	}

	// Validate email format
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}

	// Validate password strength
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	// Check for password complexity (at least one letter and one number)
	hasLetter := regexp.MustCompile(`[a-zA-Z]`).MatchString(password)
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)

	if !hasLetter || !hasNumber {
		return fmt.Errorf("password must contain at least one letter and one number")
	}

	return nil
}

// createUser hashes the password and stores a new level 1 user
func createUser(ctx context.Context, store history.Store, username, email, password string) (*models.User, error) {
	tracer := otel.Tracer("seed-user")
	ctx, span := tracer.Start(ctx, "create_user")
	defer span.End()

	// Hash password using bcrypt
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:       strings.TrimSpace(username),
		Email:          email,
		HashedPassword: string(hashedPassword),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, history.ErrUserExists) {
			return nil, fmt.Errorf("user with email %s already exists", email)
		}
		return nil, err
	}

	log.Printf("User inserted successfully with ID: %s", user.ID)

	return user, nil
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}
