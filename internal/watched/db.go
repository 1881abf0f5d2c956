package watched

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"vidfinder/internal/failures"
	"vidfinder/internal/logging"
	"vidfinder/internal/phash"
	"vidfinder/internal/video"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const (
	metaSchemaVersion = "schema_version"
	metaFrames        = "frames"
	metaHashSize      = "hash_size"
)

// ErrNotFound indicates the database file does not exist.
var ErrNotFound = errors.New("watched database not found")

// Params are the hashing parameters a database was built with.
type Params struct {
	Frames   int `json:"frames" yaml:"frames"`
	HashSize int `json:"hash_size" yaml:"hash_size"`
}

func (p Params) String() string {
	return fmt.Sprintf("frames=%d hash_size=%d", p.Frames, p.HashSize)
}

// TotalBits is the configured fingerprint length.
func (p Params) TotalBits() int {
	return p.Frames * p.HashSize * p.HashSize
}

// Record is one watched video.
type Record struct {
	Path        string            `json:"path" yaml:"path"`
	Size        int64             `json:"size" yaml:"size"`
	ModTimeNS   int64             `json:"mtime_ns" yaml:"mtime_ns"`
	Duration    time.Duration     `json:"duration" yaml:"duration"`
	Frames      int               `json:"frames" yaml:"frames"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
	Fingerprint phash.Fingerprint `json:"-" yaml:"-"`
}

// DB is an open watched database.
type DB struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	params   Params
	writable bool
	logger   *slog.Logger
}

// OpenReadOnly opens path for filtering. It returns ErrNotFound when the file
// does not exist.
func OpenReadOnly(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	logger = logging.NewComponentLogger(logger, "watched")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat watched database: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLock()
	switch {
	case err != nil:
		logger.Debug("shared lock unavailable, continuing without it",
			logging.String(logging.FieldPath, lock.Path()),
			logging.Error(err),
		)
		lock = nil
	case !locked:
		return nil, failures.Wrap(failures.ErrWatchedDBLocked, "watched", "open", path+" is being rebuilt", nil)
	}

	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro&_pragma=busy_timeout(5000)"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	d := &DB{db: db, path: path, lock: lock, logger: logger}
	params, ok, err := d.readParams(ctx)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("read watched database %s: %w", path, err)
	}
	if !ok {
		_ = d.Close()
		return nil, fmt.Errorf("read watched database %s: missing hashing parameters", path)
	}
	d.params = params
	return d, nil
}

// OpenWritable opens or creates path for building under an exclusive lock.
// A new database adopts params. An existing database with records built
// under other parameters fails with failures.ErrParameterMismatch.
func OpenWritable(ctx context.Context, path string, params Params, logger *slog.Logger) (*DB, error) {
	logger = logging.NewComponentLogger(logger, "watched")
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "open", path, err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "lock", lock.Path(), err)
	}
	if !locked {
		return nil, failures.Wrap(failures.ErrWatchedDBLocked, "watched", "lock", path, nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		unlock(lock)
		return nil, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "open", path, err)
	}
	d := &DB{db: db, path: path, lock: lock, writable: true, logger: logger}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = d.Close()
			return nil, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}
	if err := d.initSchema(ctx, params); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// ReadParams returns the parameters stored in the database at path.
func ReadParams(ctx context.Context, path string, logger *slog.Logger) (Params, error) {
	d, err := OpenReadOnly(ctx, path, logger)
	if err != nil {
		return Params{}, err
	}
	defer d.Close()
	return d.Params(), nil
}

func (d *DB) initSchema(ctx context.Context, params Params) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "schema", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "schema", "create tables", err)
	}

	meta, err := readMeta(ctx, tx)
	if err != nil {
		return fmt.Errorf("read watched metadata: %w", err)
	}
	if v, ok := meta[metaSchemaVersion]; ok && v != strconv.Itoa(schemaVersion) {
		return fmt.Errorf("watched database %s has schema version %s, expected %d", d.path, v, schemaVersion)
	}

	existing, hasParams := paramsFromMeta(meta)
	if hasParams && existing != params {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM watched_videos").Scan(&count); err != nil {
			return fmt.Errorf("count watched videos: %w", err)
		}
		if count > 0 {
			return failures.Wrap(failures.ErrParameterMismatch, "watched", "open",
				fmt.Sprintf("%s was built with %s, run uses %s", d.path, existing, params), nil)
		}
	}

	for key, value := range map[string]string{
		metaSchemaVersion: strconv.Itoa(schemaVersion),
		metaFrames:        strconv.Itoa(params.Frames),
		metaHashSize:      strconv.Itoa(params.HashSize),
	} {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO watched_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		); err != nil {
			return failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "schema", "write metadata", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "schema", "commit", err)
	}
	d.params = params
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readMeta(ctx context.Context, q queryer) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM watched_meta")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

func paramsFromMeta(meta map[string]string) (Params, bool) {
	frames, err1 := strconv.Atoi(meta[metaFrames])
	hashSize, err2 := strconv.Atoi(meta[metaHashSize])
	if err1 != nil || err2 != nil || frames < 1 || hashSize < 2 {
		return Params{}, false
	}
	return Params{Frames: frames, HashSize: hashSize}, true
}

func (d *DB) readParams(ctx context.Context) (Params, bool, error) {
	meta, err := readMeta(ctx, d.db)
	if err != nil {
		return Params{}, false, err
	}
	p, ok := paramsFromMeta(meta)
	return p, ok, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// Params returns the stored hashing parameters.
func (d *DB) Params() Params { return d.params }

// Count returns the number of records.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM watched_videos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count watched videos: %w", err)
	}
	return count, nil
}

// Records loads every record ordered by path.
func (d *DB) Records(ctx context.Context) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT path, size, mtime_ns, duration_ms, frames, fingerprint, updated_at FROM watched_videos ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("query watched videos: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			durationMS int64
			blob       []byte
			updatedAt  string
		)
		if err := rows.Scan(&r.Path, &r.Size, &r.ModTimeNS, &durationMS, &r.Frames, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan watched video: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			d.logger.Debug("unparsable updated_at on watched record",
				logging.String(logging.FieldPath, r.Path),
				logging.String("updated_at", updatedAt),
				logging.Error(err),
			)
		}
		r.Fingerprint = phash.Fingerprint{HashSize: d.params.HashSize}
		if err := r.Fingerprint.UnmarshalBinary(blob); err != nil {
			logging.WarnWithContext(d.logger, "skipping unreadable watched record", "watched_record_corrupt",
				logging.String(logging.FieldPath, r.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "matches against this record are not filtered"),
				logging.String(logging.FieldErrorHint, "rebuild the watched database with 'vidfinder watched build'"),
			)
			continue
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched videos: %w", err)
	}
	return records, nil
}

// UpsertResult counts what Upsert did.
type UpsertResult struct {
	Inserted  int `json:"inserted" yaml:"inserted"`
	Updated   int `json:"updated" yaml:"updated"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
}

// Entry pairs a file with its fingerprint for Upsert.
type Entry struct {
	File        video.File
	Fingerprint phash.Fingerprint
}

// Upsert writes entries in one transaction keyed by path. A record is
// replaced only when the file's size or mtime changed.
func (d *DB) Upsert(ctx context.Context, entries []Entry) (UpsertResult, error) {
	var res UpsertResult
	if !d.writable {
		return res, errors.New("watched database opened read-only")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return res, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "upsert", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		if e.Fingerprint.HashSize != d.params.HashSize {
			return res, failures.Wrap(failures.ErrParameterMismatch, "watched", "upsert",
				fmt.Sprintf("%s has hash size %d, database uses %d", e.File.Path, e.Fingerprint.HashSize, d.params.HashSize), nil)
		}
		var size, mtime int64
		err := tx.QueryRowContext(ctx, "SELECT size, mtime_ns FROM watched_videos WHERE path = ?", e.File.Path).Scan(&size, &mtime)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res.Inserted++
		case err != nil:
			return res, fmt.Errorf("look up %s: %w", e.File.Path, err)
		case size == e.File.Size && mtime == e.File.ModUnixNano():
			res.Unchanged++
			continue
		default:
			res.Updated++
		}

		blob, err := e.Fingerprint.MarshalBinary()
		if err != nil {
			return res, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO watched_videos (path, size, mtime_ns, duration_ms, frames, fingerprint, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(path) DO UPDATE SET
                size = excluded.size,
                mtime_ns = excluded.mtime_ns,
                duration_ms = excluded.duration_ms,
                frames = excluded.frames,
                fingerprint = excluded.fingerprint,
                updated_at = excluded.updated_at`,
			e.File.Path, e.File.Size, e.File.ModUnixNano(), e.File.Duration.Milliseconds(), len(e.Fingerprint.Frames), blob, now,
		); err != nil {
			return res, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "upsert", e.File.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return res, failures.Wrap(failures.ErrWatchedDBUnwritable, "watched", "upsert", "commit", err)
	}
	d.logger.Debug("watched records upserted",
		logging.Int("inserted", res.Inserted),
		logging.Int("updated", res.Updated),
		logging.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// Close closes the database and releases the lock.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var err error
	if d.db != nil {
		err = d.db.Close()
	}
	unlock(d.lock)
	d.lock = nil
	return err
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}
