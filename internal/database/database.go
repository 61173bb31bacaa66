package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/franckalain/halalscan/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var schemaFS embed.FS

// MaxHistory is the largest number of scans returned by ListScans
const MaxHistory = 50

var (
	ErrNotFound = errors.New("scan not found")
	ErrNoUser   = errors.New("user must be logged in to save scans")
)

// DB interface defines the methods our history store should implement
type DB interface {
	// SaveScan stores result as a new history record with a fresh id and timestamp
	SaveScan(ctx context.Context, userID, imageURI string, result models.ScanResult) (*models.ScanRecord, error)
	GetScan(ctx context.Context, userID, id string) (*models.ScanRecord, error)
	// ListScans returns the user's scans, newest first
	ListScans(ctx context.Context, userID string, limit int) ([]*models.ScanRecord, error)
	DeleteScan(ctx context.Context, userID, id string) error
	Close() error
}

// Open opens the history store for driver: "sqlite" (default), "postgres" or "bolt"
func Open(driver, path string) (DB, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteDB(path)
	case "postgres":
		return NewPostgresDB(path)
	case "bolt":
		return NewBoltDB(path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// SQLDB implements the DB interface on database/sql
type SQLDB struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// NewSQLDB wraps an open connection. driver selects the SQL dialect; the schema is
// not touched.
func NewSQLDB(db *sql.DB, driver string) *SQLDB {
	return &SQLDB{db: db, postgres: driver == "postgres", now: time.Now}
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db, "schema_sqlite.sql"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return NewSQLDB(db, "sqlite"), nil
}

// NewPostgresDB connects to PostgreSQL using a lib/pq connection string
func NewPostgresDB(dsn string) (*SQLDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := initializeSchema(db, "schema_postgres.sql"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return NewSQLDB(db, "postgres"), nil
}

func initializeSchema(db *sql.DB, name string) error {
	schemaBytes, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL
func (s *SQLDB) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const scanColumns = `id, user_id, image_uri, halal_status, halal_logo_detected, barcode,
			product_name, ingredients, e_codes, confidence, created_at`

// SaveScan saves a scan to the user's history
func (s *SQLDB) SaveScan(ctx context.Context, userID, imageURI string, result models.ScanResult) (*models.ScanRecord, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	rec := newRecord(userID, imageURI, result, s.now())
	ingredients, err := json.Marshal(rec.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("error encoding ingredients: %w", err)
	}
	eCodes, err := json.Marshal(rec.ECodes)
	if err != nil {
		return nil, fmt.Errorf("error encoding e-codes: %w", err)
	}

	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		rec.ID, rec.UserID, rec.ImageURI, string(rec.HalalStatus), rec.HalalLogoDetected,
		rec.Barcode, rec.ProductName, string(ingredients), string(eCodes), rec.Confidence,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("error saving scan: %w", err)
	}
	return rec, nil
}

// GetScan retrieves one of the user's scans
func (s *SQLDB) GetScan(ctx context.Context, userID, id string) (*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ? AND user_id = ?`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.rebind(query), id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListScans retrieves the most recent scans of a user
func (s *SQLDB) ListScans(ctx context.Context, userID string, limit int) ([]*models.ScanRecord, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error listing scans: %w", err)
	}
	defer rows.Close()

	results := []*models.ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// DeleteScan removes one of the user's scans
func (s *SQLDB) DeleteScan(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM scans WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("error deleting scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting scan: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (s *SQLDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var (
		rec                 models.ScanRecord
		status              string
		ingredients, eCodes string
		createdAt           int64
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ImageURI, &status, &rec.HalalLogoDetected, &rec.Barcode,
		&rec.ProductName, &ingredients, &eCodes, &rec.Confidence, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.HalalStatus = models.ParseStatus(status)
	if err := json.Unmarshal([]byte(ingredients), &rec.Ingredients); err != nil {
		return nil, fmt.Errorf("error decoding ingredients of scan %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(eCodes), &rec.ECodes); err != nil {
		return nil, fmt.Errorf("error decoding e-codes of scan %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}

func newRecord(userID, imageURI string, result models.ScanResult, now time.Time) *models.ScanRecord {
	rec := &models.ScanRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		ImageURI:   imageURI,
		ScanResult: result.Clone(),
		CreatedAt:  now.UTC().Truncate(time.Millisecond),
	}
	return rec
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > MaxHistory {
		return MaxHistory
	}
	return limit
}
