package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

const (
	readingParams = 5

	// SQLite limits a statement to 32766 host parameters.
	maxReadingsPerStatement = 32766 / readingParams
)

// SqliteStore archives raw readings in a SQLite database. Writes go through
// a WAL connection that creates the schema on first use; reads use a separate
// read-only connection.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. Connections are
// opened lazily.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateImport registers a new import of the log named source and returns
// its identifier.
func (s *SqliteStore) CreateImport(ctx context.Context, source string) (importID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertImportSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, time.Now().UTC().UnixNano(), source)
	if err != nil {
		err = fmt.Errorf("inserting import: %w", err)
		return
	}

	importID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting import ID: %w", err)
	}
	return
}

// Imports lists all imports in the archive with their reading counts.
func (s *SqliteStore) Imports(ctx context.Context) (imports []*Import, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectImportsSQL)
	if err != nil {
		err = fmt.Errorf("querying imports: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var imp Import
		var importedAt int64
		if err = rows.Scan(&imp.ID, &importedAt, &imp.Source, &imp.Readings); err != nil {
			err = fmt.Errorf("scanning import: %w", err)
			return
		}
		imp.ImportedAt = time.Unix(0, importedAt).UTC()
		imports = append(imports, &imp)
	}
	err = rows.Err()
	return
}

// StoreReadings saves a batch of readings in a single transaction and returns
// the number of rows stored. Readings whose (sensor, timestamp) is already
// archived are skipped. Large batches are split into several statements to
// stay under the SQLite host parameter limit.
func (s *SqliteStore) StoreReadings(ctx context.Context, importID int64, readings []baro.Reading) (stored int64, err error) {
	if len(readings) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(readings, maxReadingsPerStatement) {
		n, err := insertReadings(ctx, tx, importID, chunk)
		if err != nil {
			return 0, err
		}
		stored += n
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	return stored, nil
}

func insertReadings(ctx context.Context, tx *sql.Tx, importID int64, readings []baro.Reading) (int64, error) {
	values := make([]any, 0, len(readings)*readingParams)
	valuesPlaceholder := "(?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertReadingSQL)

	for i, r := range readings {
		data := toReadingData(r)
		values = append(values,
			importID,
			data.TimestampNs,
			data.SensorID,
			data.ModuleID,
			data.Value,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	result, err := tx.ExecContext(ctx, sb.String(), values...)
	if err != nil {
		return 0, fmt.Errorf("batch inserting readings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting inserted readings: %w", err)
	}
	return n, nil
}

// Readings returns a reader over archived readings ordered by timestamp.
func (s *SqliteStore) Readings(ctx context.Context, opts ...ReaderOption) (ReadingReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteReadingReader(ctx, db, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
