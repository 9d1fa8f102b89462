// Package main provides a CLI tool for seeding the database with catalog items
// and opening stock.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"retailpos/internal/app"
	"retailpos/internal/core/id"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/posting"
	"retailpos/internal/infrastructure/storage/postgres"
	"retailpos/pkg/logger"
)

// seedFile is the layout of SEED_FILE.
type seedFile struct {
	LocationID string     `json:"locationId"`
	Items      []seedItem `json:"items"`
}

type seedItem struct {
	catalog.Item
	// Opening is the opening on-hand at the seed location
	Opening types.Quantity `json:"opening"`
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	storage, err := app.PostgresStorage(postgres.NewTxManager(pool), postgres.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to wire storage", "error", err)
	}
	engine := app.New(storage, posting.DefaultAccounts())

	data := demoData()
	if path := os.Getenv("SEED_FILE"); path != "" {
		if data, err = loadSeedFile(path); err != nil {
			log.Fatalw("failed to read seed file", "path", path, "error", err)
		}
	}

	if err := seed(ctx, engine, data, log); err != nil {
		log.Fatalw("seeding failed", "error", err)
	}
	log.Info("seeding completed successfully")
}

func loadSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, err
	}
	var data seedFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return seedFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}

func seed(ctx context.Context, engine *app.Engine, data seedFile, log *logger.Logger) error {
	locationID, err := id.Parse(data.LocationID)
	if err != nil {
		return fmt.Errorf("location id %q: %w", data.LocationID, err)
	}

	for _, it := range data.Items {
		if id.IsNil(it.ID) {
			it.ID = id.New()
		}
		if err := engine.Storage.Catalog.Put(ctx, it.Item); err != nil {
			return fmt.Errorf("put item %s: %w", it.SKU, err)
		}
		if it.Opening.IsPositive() {
			if err := engine.SeedOpening(ctx, locationID, it.ID, it.Opening); err != nil {
				return fmt.Errorf("opening stock %s: %w", it.SKU, err)
			}
		}
		log.Infow("item seeded", "sku", it.SKU, "item_id", it.ID, "opening", it.Opening)
	}
	return nil
}

func demoData() seedFile {
	item := func(sku, name, price, cost string, opening int64) seedItem {
		return seedItem{
			Item: catalog.Item{
				ID:         id.New(),
				SKU:        sku,
				Name:       name,
				Price:      types.MustMoney(price),
				Cost:       types.MustMoney(cost),
				TaxRatePct: types.MustMoney("10"),
				IsActive:   true,
			},
			Opening: types.NewQuantity(opening),
		}
	}

	locationID := os.Getenv("SEED_LOCATION_ID")
	if locationID == "" {
		locationID = id.New().String()
	}
	return seedFile{
		LocationID: locationID,
		Items: []seedItem{
			item("TEA-100", "Green tea 100g", "4.50", "2.10", 120),
			item("MUG-01", "Stoneware mug", "12.00", "5.40", 40),
			item("KET-2L", "Electric kettle 2L", "39.90", "21.00", 8),
		},
	}
}
