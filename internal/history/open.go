package history

import (
	"context"
	"fmt"
	"log"

	"github.com/flashcording/agent-orchestrator/internal/config"
)

// connectAttempts bounds the startup wait for PostgreSQL
const connectAttempts = 10

// Open connects the store selected by the database config. It returns a nil
// store and no error when no database URL is configured.
func Open(ctx context.Context, db config.DatabaseConfig) (Store, error) {
	switch db.ResolveDriver() {
	case "":
		return nil, nil
	case config.DriverPostgres:
		log.Println("Connecting to PostgreSQL database...")
		pool, err := ConnectPostgres(ctx, db.URL, connectAttempts)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Println("Connected to PostgreSQL database")
		return store, nil
	case config.DriverSQLite:
		store, err := NewSQLiteStore(db.URL)
		if err != nil {
			return nil, err
		}
		log.Printf("Opened SQLite database at %s", db.URL)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}
