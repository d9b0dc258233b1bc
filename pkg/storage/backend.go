package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// AttributeCost is the construction cost of one attribute. A nil Cost marks a missing value.
type AttributeCost struct {
	Attribute string   `json:"attribute"`
	Cost      *float64 `json:"cost"`
}

func NewAttributeCost(attribute string, cost float64) AttributeCost {
	return AttributeCost{Attribute: attribute, Cost: &cost}
}

// Backend persists attribute construction costs.
type Backend interface {
	SaveBatch(costs []AttributeCost) (string, error)
	Load() ([]AttributeCost, error)
	LoadBatch(batchID string) ([]AttributeCost, error)
	Close()
	Truncate() error
}

type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// every batch keeps its own rows; the newest row of an attribute is its current cost
	query := `
	CREATE TABLE IF NOT EXISTS attribute_costs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch TEXT NOT NULL,
		attribute TEXT NOT NULL,
		cost REAL,
		UNIQUE (batch, attribute)
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init table: %w", err)
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		log.Printf("[Store] Warning: Failed to set PRAGMA: %v", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// SaveBatch writes costs in one transaction under a fresh batch id.
func (s *SQLiteBackend) SaveBatch(costs []AttributeCost) (string, error) {
	batchID := uuid.NewString()
	if len(costs) == 0 {
		return batchID, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO attribute_costs (batch, attribute, cost) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return "", err
	}
	defer stmt.Close()

	for _, c := range costs {
		var cost sql.NullFloat64
		if c.Cost != nil {
			cost = sql.NullFloat64{Float64: *c.Cost, Valid: true}
		}
		if _, err := stmt.Exec(batchID, c.Attribute, cost); err != nil {
			tx.Rollback()
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return batchID, nil
}

// Load returns the most recently saved cost of every attribute.
func (s *SQLiteBackend) Load() ([]AttributeCost, error) {
	return s.query(`SELECT attribute, cost FROM attribute_costs
		WHERE id IN (SELECT MAX(id) FROM attribute_costs GROUP BY attribute)
		ORDER BY attribute ASC`)
}

func (s *SQLiteBackend) LoadBatch(batchID string) ([]AttributeCost, error) {
	return s.query("SELECT attribute, cost FROM attribute_costs WHERE batch = ? ORDER BY attribute ASC", batchID)
}

func (s *SQLiteBackend) query(q string, args ...interface{}) ([]AttributeCost, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var costs []AttributeCost
	for rows.Next() {
		var name string
		var cost sql.NullFloat64
		if err := rows.Scan(&name, &cost); err != nil {
			return nil, err
		}
		c := AttributeCost{Attribute: name}
		if cost.Valid {
			v := cost.Float64
			c.Cost = &v
		}
		costs = append(costs, c)
	}
	return costs, rows.Err()
}

func (s *SQLiteBackend) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM attribute_costs")
	return err
}

func (s *SQLiteBackend) Close() {
	s.db.Close()
}
