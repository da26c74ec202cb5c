package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists market snapshots and analysis results. It implements
// market.SnapshotStore and analysis.ResultStore.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.Chmod(dbPath, 0600); err != nil {
			log.Warn().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
		}
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	marketQuery := `
	CREATE TABLE IF NOT EXISTS market_snapshots (
		cache_key TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(marketQuery); err != nil {
		return fmt.Errorf("failed to create market_snapshots table: %w", err)
	}

	analysisQuery := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		input_hash TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(analysisQuery); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetMarketSnapshot returns the stored result for key.
// Returns nil, nil if no snapshot exists.
func (s *SQLiteStore) GetMarketSnapshot(key string) (*market.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT result FROM market_snapshots WHERE cache_key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query market snapshot: %w", err)
	}

	var r market.Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to decode market snapshot: %w", err)
	}
	return &r, nil
}

// SetMarketSnapshot stores r under key, replacing any previous snapshot.
func (s *SQLiteStore) SetMarketSnapshot(key string, r *market.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode market snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO market_snapshots (cache_key, result, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			result = excluded.result,
			fetched_at = excluded.fetched_at
	`, key, string(data), r.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save market snapshot: %w", err)
	}
	return nil
}

// PruneMarketSnapshots deletes snapshots fetched before cutoff and returns
// the number removed.
func (s *SQLiteStore) PruneMarketSnapshots(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM market_snapshots WHERE fetched_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune market snapshots: %w", err)
	}
	return res.RowsAffected()
}

// GetAnalysis returns a cached analysis by input hash.
// Returns nil, nil if no entry exists.
func (s *SQLiteStore) GetAnalysis(hash string) (*llm.ExpertAnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT result FROM analysis_cache WHERE input_hash = ?", hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	var r llm.ExpertAnalysisResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}
	return &r, nil
}

// SetAnalysis stores an analysis result in the cache.
func (s *SQLiteStore) SetAnalysis(hash string, r *llm.ExpertAnalysisResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (input_hash, result)
		VALUES (?, ?)
		ON CONFLICT(input_hash) DO UPDATE SET
			result = excluded.result,
			created_at = CURRENT_TIMESTAMP
	`, hash, string(data))
	if err != nil {
		return fmt.Errorf("failed to cache analysis: %w", err)
	}
	return nil
}
