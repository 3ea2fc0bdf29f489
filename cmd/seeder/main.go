// cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/logger"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	migrationsDir := flag.String("migrations", "migrations", "directory of schema migrations")
	seedDir := flag.String("seed", "seed", "directory of seed data; empty to skip")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("service", "seeder").Logger()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	dirs := []string{*migrationsDir}
	if *seedDir != "" {
		dirs = append(dirs, *seedDir)
	}

	for _, dir := range dirs {
		files, err := sqlFiles(dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to list sql files")
		}
		for _, file := range files {
			if err := execFile(ctx, conn, file); err != nil {
				log.Fatal().Err(err).Str("file", file).Msg("failed to execute")
			}
			log.Info().Str("file", file).Msg("applied")
		}
	}

	log.Info().Msg("database seeding completed successfully")
}

// sqlFiles lists dir/*.sql in lexical order, which is apply order.
func sqlFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func execFile(ctx context.Context, conn *sql.DB, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := conn.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("exec %s: %w", file, err)
	}
	return nil
}
