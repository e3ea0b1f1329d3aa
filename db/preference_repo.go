package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tfkr-ae/upiscan/domain"
)

var _ domain.KeyValueStore = (*Repository)(nil)

// Get implements the domain.KeyValueStore interface.
// It returns the value stored under key in the 'preference' table.
func (repo *Repository) Get(key string) ([]byte, bool, error) {
	var value []byte
	query := `SELECT value FROM preference WHERE key = ?`

	err := repo.dbConn.Get(&value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting preference %s: %w", key, err)
	}

	return value, true, nil
}

// Set implements the domain.KeyValueStore interface.
// It inserts the value or replaces the existing one for key.
func (repo *Repository) Set(key string, value []byte) error {
	query := `INSERT INTO preference(key, value, updated_at)
	          VALUES (?, ?, CURRENT_TIMESTAMP)
	          ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`

	_, err := repo.dbConn.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("setting preference %s: %w", key, err)
	}

	return nil
}

// Remove implements the domain.KeyValueStore interface.
// Removing a key that does not exist is not an error.
func (repo *Repository) Remove(key string) error {
	query := `DELETE FROM preference WHERE key = ?`

	_, err := repo.dbConn.Exec(query, key)
	if err != nil {
		return fmt.Errorf("removing preference %s: %w", key, err)
	}

	return nil
}
