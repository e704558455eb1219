package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Ping verifies the connection is alive and responsive.
// Lighter than HealthCheck: no stats inspection, no logging on success.
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close drains the pool; safe to call multiple times
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		log.Println("[DATABASE] Pool is already closed or was never initialized")
		return nil
	}

	log.Println("[DATABASE] Closing database connection pool...")

	// Waits for acquired connections to be released before terminating
	db.Pool.Close()
	db.Pool = nil

	log.Println("[DATABASE] Connection pool closed successfully")
	return nil
}
