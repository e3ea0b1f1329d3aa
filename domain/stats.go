package domain

// StatsRepository defines the interface for retrieving statistics about the activity log.
type StatsRepository interface {
	// CountLogs returns the total number of log entries.
	CountLogs() (int, error)
	// CountByEvent returns the number of log entries recorded for the given event name.
	CountByEvent(event string) (int, error)
}
