package db

import (
	"fmt"

	"github.com/tfkr-ae/upiscan/domain"
)

var _ domain.StatsRepository = (*Repository)(nil)

// CountLogs returns the total number of log entries.
func (repo *Repository) CountLogs() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM logs`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting log count: %w", err)
	}

	return count, nil
}

// CountByEvent returns the number of log entries whose context records the given event.
func (repo *Repository) CountByEvent(event string) (int, error) {
	var count int
	query := `SELECT COUNT(*)
              FROM logs
              WHERE json_extract(context, '$.event') = ?`

	err := repo.dbConn.Get(&count, query, event)
	if err != nil {
		return 0, fmt.Errorf("getting %s count: %w", event, err)
	}

	return count, nil
}
