package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS imports (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    imported_at INTEGER NOT NULL,
    source      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    import_id INTEGER NOT NULL REFERENCES imports (id),
    ts_ns     INTEGER NOT NULL,
    sensor_id INTEGER NOT NULL,
    module_id TEXT    NOT NULL,
    value     REAL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_readings_sensor_ts ON readings (sensor_id, ts_ns);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_ts_ns ON readings (ts_ns);
CREATE INDEX IF NOT EXISTS idx_readings_import_id ON readings (import_id);`

	insertImportSQL = `
INSERT INTO imports (imported_at,
                     source)
VALUES (?, ?)`

	selectImportsSQL = `
SELECT i.id,
       i.imported_at,
       i.source,
       COUNT(r.id)
FROM imports i
         LEFT JOIN readings r ON r.import_id = i.id
GROUP BY i.id
ORDER BY i.id`

	// A sensor has one reading per instant; re-imported or overlapping logs
	// keep the reading stored first.
	insertReadingSQL = `
INSERT OR IGNORE INTO readings (import_id,
                      ts_ns,
                      sensor_id,
                      module_id,
                      value)
VALUES `

	selectReadingsSQL = `
SELECT ts_ns,
       sensor_id,
       module_id,
       value
FROM readings
WHERE ts_ns BETWEEN ? AND ?
ORDER BY id`
)
