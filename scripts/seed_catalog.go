package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/courtbook.db", "path to sqlite db")
		configPath  = flag.String("config", "", "optional config.yaml for booking defaults")
	)
	flag.Parse()

	advance := models.DefaultMaxAdvanceDays
	defaults := config.BookingDefaults{
		OpeningTime:        models.DefaultOpeningTime,
		ClosingTime:        models.DefaultClosingTime,
		IncrementMinutes:   models.DefaultIncrementMinutes,
		MinDurationMinutes: models.DefaultMinDurationMinutes,
		MaxDurationMinutes: models.DefaultMaxDurationMinutes,
		MaxAdvanceDays:     &advance,
	}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		defaults = cfg.BookingDefaults
	}

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var file service.CatalogFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Venues) == 0 {
		return fmt.Errorf("no venues in yaml")
	}

	db, err := database.NewDB(*dbPath, database.Options{}, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := service.NewCatalogService(db, defaults, &logger).Seed(ctx, &file)
	if err != nil {
		return err
	}

	logger.Info().
		Int("venues", stats.Venues).
		Int("courts", stats.Courts).
		Int("special_hours", stats.SpecialHours).
		Int("restrictions", stats.Restrictions).
		Msg("catalog seeded")
	return nil
}
