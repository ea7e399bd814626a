package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/questforge/dm-companion/config"
	"github.com/questforge/dm-companion/db"
	"github.com/questforge/dm-companion/repositories"
	"github.com/questforge/dm-companion/services"
	"golang.org/x/sync/errgroup"
)

// Наполняет справочник из CSV-датасетов. Повторный запуск безопасен:
// существующие записи пропускаются.
//
//	loadcompendium -monsters monsters.csv -spells spells.csv
func main() {
	monstersPath := flag.String("monsters", "", "path to the monster CSV dataset")
	spellsPath := flag.String("spells", "", "path to the spell CSV dataset")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *monstersPath == "" && *spellsPath == "" {
		logger.Error("nothing to load: pass -monsters and/or -spells")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbConn.Close()

	loader := services.NewCompendiumLoader(
		repositories.NewPostgresMonsterRepository(dbConn),
		repositories.NewPostgresSpellRepository(dbConn),
		logger,
	)

	g, ctx := errgroup.WithContext(context.Background())

	if *monstersPath != "" {
		path := *monstersPath
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = loader.LoadMonsters(ctx, f)
			return err
		})
	}

	if *spellsPath != "" {
		path := *spellsPath
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = loader.LoadSpells(ctx, f)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("compendium import failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("compendium import finished")
}
