// Package main provides the database admin CLI.
// Usage: admin migrate [up|down|status]
//        admin purge-keys
//        admin stats
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"

	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "purge-keys":
		purgeKeys(ctx)
	case "stats":
		stats(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`retailpos admin CLI

Usage:
  admin <command> [options]

Commands:
  migrate     Run goose migrations from db/migrations (up, down, status; default up)
  purge-keys  Delete expired idempotency keys
  stats       Print connection pool statistics
  help        Show this help

Environment:
  DATABASE_URL     PostgreSQL DSN (required)
  MIGRATIONS_DIR   Migration directory (default db/migrations)`)
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

// migrate shells out to the goose binary, as the deployment scripts do.
func migrate(args []string) {
	dsn := mustEnv("DATABASE_URL")
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "db/migrations"
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up", "down", "status":
	default:
		fmt.Printf("Unknown migrate command: %s\n", command)
		os.Exit(1)
	}

	fmt.Printf("Running goose %s in %s...\n", command, dir)
	cmd := exec.Command("goose", "-dir", dir, "postgres", dsn, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Printf("  ✗ Failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("  ✓ Done")
}

func connect(ctx context.Context) *postgres.Pool {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	return pool
}

func purgeKeys(ctx context.Context) {
	pool := connect(ctx)
	defer pool.Close()

	store := postgres.NewIdempotencyStore(postgres.NewTxManager(pool), 24*time.Hour)
	n, err := store.PurgeExpired(ctx)
	if err != nil {
		fmt.Printf("Failed to purge keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Purged %d expired idempotency keys\n", n)
}

func stats(ctx context.Context) {
	pool := connect(ctx)
	defer pool.Close()

	ctx = logger.WithLogger(ctx, logger.Default())
	pool.LogStats(ctx)

	s := postgres.GetPoolStats(pool.Pool)
	fmt.Printf("total=%d acquired=%d idle=%d max=%d\n", s.TotalConns, s.AcquiredConns, s.IdleConns, s.MaxConns)
}
