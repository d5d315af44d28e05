// Package catalog implements the discovery collaborator: a
// SQLite-backed catalog of procurable laptops, seeded from a JSON file
// and filtered against a requirement.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"procura/internal/types"
)

// budgetTolerance lets discovery keep slightly-over-budget candidates;
// the value score penalizes them later instead of dropping them here.
const budgetTolerance = 1.15

// Store is the SQLite-backed catalog.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (creating if needed) the catalog database.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("catalog")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS laptops (
		id       TEXT PRIMARY KEY,
		brand    TEXT NOT NULL,
		price    REAL NOT NULL,
		stock    INTEGER NOT NULL,
		ram_gb   INTEGER NOT NULL,
		storage_gb INTEGER NOT NULL,
		doc      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_laptops_price ON laptops(price);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// seedFile mirrors the JSON catalog file layout.
type seedFile struct {
	Laptops []types.Candidate `json:"laptops"`
}

// SeedFromFile replaces the catalog contents with the entries in the
// JSON seed file. Runs in a single transaction so readers never see a
// half-loaded catalog.
func (s *Store) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM laptops"); err != nil {
		return 0, fmt.Errorf("failed to clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO laptops (id, brand, price, stock, ram_gb, storage_gb, doc) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range seed.Laptops {
		doc, err := json.Marshal(c)
		if err != nil {
			return 0, fmt.Errorf("failed to encode candidate %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Brand, c.Price, c.Stock,
			c.Specs.RAMGB, c.Specs.StorageGB, string(doc)); err != nil {
			return 0, fmt.Errorf("failed to insert candidate %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	s.logger.Info("catalog seeded",
		zap.String("path", path),
		zap.Int("candidates", len(seed.Laptops)))
	return len(seed.Laptops), nil
}

// All returns every candidate in the catalog.
func (s *Store) All(ctx context.Context) ([]types.Candidate, error) {
	return s.query(ctx, "SELECT doc FROM laptops ORDER BY id")
}

// Discover applies the requirement filter rules and returns the
// qualifying candidates, or an empty slice when nothing matches.
// Numeric bounds are pushed into SQL; list membership and brand
// comparison happen on the decoded document.
func (s *Store) Discover(ctx context.Context, req types.Requirement) ([]types.Candidate, error) {
	rows, err := s.query(ctx,
		"SELECT doc FROM laptops WHERE stock >= ? AND price <= ? AND ram_gb >= ? AND storage_gb >= ? ORDER BY id",
		req.Quantity,
		req.MaxBudgetPerUnit*budgetTolerance,
		req.MinRAMGB,
		req.MinStorageGB,
	)
	if err != nil {
		return nil, err
	}

	candidates := make([]types.Candidate, 0, len(rows))
	for _, c := range rows {
		if !c.SupportsUseCase(req.UseCase) {
			continue
		}
		if req.PreferredBrand != "" && !strings.EqualFold(c.Brand, req.PreferredBrand) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("catalog scan failed: %w", err)
		}
		var c types.Candidate
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("corrupt catalog document: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
