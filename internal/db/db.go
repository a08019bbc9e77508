package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/xxxsen/docindex/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dimensionsPlaceholder = "{{dimensions}}"

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildDSN(cfg))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func BuildDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
}

// ApplyMigrations runs the embedded schema; dims fixes the vector column width.
func ApplyMigrations(db *sql.DB, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dims)
	}
	queries, err := loadMigrations(dims)
	if err != nil {
		return err
	}
	for _, q := range queries {
		if _, err := db.Exec(q.sql); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("execute query in %s: %w", q.file, err)
		}
	}
	return nil
}

type migrationQuery struct {
	file string
	sql  string
}

func loadMigrations(dims int) ([]migrationQuery, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	var out []migrationQuery
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return nil, err
		}
		text := strings.ReplaceAll(string(content), dimensionsPlaceholder, strconv.Itoa(dims))
		for _, q := range strings.Split(text, ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			out = append(out, migrationQuery{file: file, sql: q})
		}
	}
	return out, nil
}
