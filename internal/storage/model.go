package storage

import (
	"database/sql"
	"time"
)

// Import describes one sensor log loaded into an archive.
type Import struct {
	ID         int64     `json:"id"`
	ImportedAt time.Time `json:"importedAt"`
	Source     string    `json:"source"`
	Readings   int64     `json:"readings"`
}

type readingData struct {
	TimestampNs int64
	SensorID    int64
	ModuleID    string
	Value       sql.NullFloat64
}
