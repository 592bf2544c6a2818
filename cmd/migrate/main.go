package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/samirrijal/geopoly/internal/adapters/postgres"
	"github.com/samirrijal/geopoly/internal/adapters/sheets"
	"github.com/samirrijal/geopoly/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|sheets [title]>")
	}

	cfg, err := config.Load("geopoly-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case postgres.Up, postgres.Down:
		runMigrations(ctx, cfg, os.Args[1])
	case "sheets":
		title := "GeoPolygon API Logs"
		if len(os.Args) > 2 {
			title = strings.Join(os.Args[2:], " ")
		}
		createSpreadsheet(ctx, cfg, title)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, direction string) {
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db, migrationsDir, direction)
	for _, f := range applied {
		fmt.Printf("OK  %s\n", f)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}

	log.Printf("%d migrations applied (%s)", len(applied), direction)
}

func createSpreadsheet(ctx context.Context, cfg *config.Config, title string) {
	cfg.Sheets.Enabled = true
	logger, err := sheets.New(ctx, cfg.Sheets)
	if err != nil {
		log.Fatalf("sheets: %v", err)
	}

	id, err := logger.CreateSpreadsheet(ctx, title)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("spreadsheet id: %s\n", id)
	fmt.Printf("url:            %s\n", logger.SpreadsheetURL())
	fmt.Println("set GEOPOLY_SHEETS_SPREADSHEET_ID to enable request logging")
}
