package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitesift/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "sitesift.db"

// CrawlDB archives fetched pages and pipeline runs in SQLite.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL turns on Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer: the crawl of several seeds shares this handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		strategy TEXT,
		title TEXT,
		text TEXT,
		links TEXT,
		hash TEXT,
		error TEXT,
		fetched_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_seed ON pages(seed);
	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(hash);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		stages TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		seed_count INTEGER DEFAULT 0,
		page_count INTEGER DEFAULT 0,
		error TEXT,
		stats TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := cdb.db.ExecContext(context.Background(), schema); err != nil {
		return err
	}
	return cdb.addPageColumns("title", "links")
}

// addPageColumns adds TEXT columns missing from a pages table created by
// an older version.
func (cdb *CrawlDB) addPageColumns(names ...string) error {
	ctx := context.Background()
	rows, err := cdb.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('pages')")
	if err != nil {
		return err
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		have[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := cdb.db.ExecContext(ctx, "ALTER TABLE pages ADD COLUMN "+name+" TEXT"); err != nil {
			return fmt.Errorf("failed to add column %s: %w", name, err)
		}
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SavePage inserts or replaces the page fetched in its run.
func (cdb *CrawlDB) SavePage(ctx context.Context, page *model.PageRecord) error {
	if page.Hash == "" && page.Text != "" {
		page.ComputeHash()
	}
	fetchedAt := page.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	links, err := encodeLinks(page.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links of %s: %w", page.URL, err)
	}

	query := `
	INSERT INTO pages (run_id, seed, url, status_code, content_type, strategy, title, text, links, hash, error, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		seed = excluded.seed,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		strategy = excluded.strategy,
		title = excluded.title,
		text = excluded.text,
		links = excluded.links,
		hash = excluded.hash,
		error = excluded.error,
		fetched_at = excluded.fetched_at
	`
	_, err = cdb.db.ExecContext(ctx, query,
		page.RunID,
		page.Seed,
		page.URL,
		page.StatusCode,
		page.ContentType,
		page.Strategy,
		page.Title,
		page.Text,
		links,
		page.Hash,
		page.Error,
		formatTimestamp(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save page %s: %w", page.URL, err)
	}
	return nil
}

const pageColumns = `run_id, seed, url, status_code, content_type, strategy, title, text, links, hash, error, fetched_at`

func scanPage(row interface{ Scan(...any) error }) (*model.PageRecord, error) {
	var (
		page        model.PageRecord
		contentType sql.NullString
		strategy    sql.NullString
		title       sql.NullString
		text        sql.NullString
		links       sql.NullString
		hash        sql.NullString
		errMsg      sql.NullString
		fetchedAt   string
	)
	if err := row.Scan(
		&page.RunID,
		&page.Seed,
		&page.URL,
		&page.StatusCode,
		&contentType,
		&strategy,
		&title,
		&text,
		&links,
		&hash,
		&errMsg,
		&fetchedAt,
	); err != nil {
		return nil, err
	}
	page.ContentType = contentType.String
	page.Strategy = strategy.String
	page.Title = title.String
	page.Text = text.String
	if links.Valid {
		if err := json.Unmarshal([]byte(links.String), &page.Links); err != nil {
			return nil, fmt.Errorf("invalid links of %s: %w", page.URL, err)
		}
	}
	page.Hash = hash.String
	page.Error = errMsg.String
	page.FetchedAt = parseTimestamp(fetchedAt)
	return &page, nil
}

// encodeLinks stores nil links as NULL so readers can tell "not recorded"
// from "no links".
func encodeLinks(links []string) (sql.NullString, error) {
	if links == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(links)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// GetPage returns the page fetched for url in runID, or nil when absent.
func (cdb *CrawlDB) GetPage(ctx context.Context, runID, url string) (*model.PageRecord, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE run_id = ? AND url = ?`
	page, err := scanPage(cdb.db.QueryRowContext(ctx, query, runID, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// LatestPage returns the most recent successful fetch of url across runs,
// or nil when there is none.
func (cdb *CrawlDB) LatestPage(ctx context.Context, url string) (*model.PageRecord, error) {
	query := `SELECT ` + pageColumns + ` FROM pages
	WHERE url = ? AND (error IS NULL OR error = '')
	ORDER BY fetched_at DESC
	LIMIT 1`
	page, err := scanPage(cdb.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest page: %w", err)
	}
	return page, nil
}

// ListPages returns the pages of runID ordered by seed and URL.
func (cdb *CrawlDB) ListPages(ctx context.Context, runID string) ([]*model.PageRecord, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE run_id = ? ORDER BY seed, url`
	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*model.PageRecord
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// ResultForRun rebuilds the crawl result of runID from its successful pages.
func (cdb *CrawlDB) ResultForRun(ctx context.Context, runID string) (*model.CrawlResult, error) {
	pages, err := cdb.ListPages(ctx, runID)
	if err != nil {
		return nil, err
	}
	result := model.NewCrawlResult()
	for _, p := range pages {
		if p.Failed() {
			result.AddSeed(p.Seed)
			continue
		}
		result.Set(p.Seed, p.URL, p.Text)
	}
	return result, nil
}

// HasRecentCrawl reports whether url was fetched successfully within d.
func (cdb *CrawlDB) HasRecentCrawl(ctx context.Context, url string, d time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND (error IS NULL OR error = '') AND fetched_at > ?
	`
	var count int
	since := formatTimestamp(time.Now().Add(-d))
	if err := cdb.db.QueryRowContext(ctx, query, url, since).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}
	return count > 0, nil
}

// SaveRun inserts or updates a run.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	stages := make([]string, 0, len(run.Stages))
	for _, s := range run.Stages {
		stages = append(stages, string(s))
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = formatTimestamp(run.FinishedAt)
	}

	query := `
	INSERT INTO runs (id, stages, status, started_at, finished_at, seed_count, page_count, error, stats)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		stages = excluded.stages,
		status = excluded.status,
		finished_at = excluded.finished_at,
		seed_count = excluded.seed_count,
		page_count = excluded.page_count,
		error = excluded.error,
		stats = excluded.stats
	`
	_, err = cdb.db.ExecContext(ctx, query,
		run.ID,
		strings.Join(stages, ","),
		string(run.Status),
		formatTimestamp(run.StartedAt),
		finished,
		run.SeedCount,
		run.PageCount,
		run.Error,
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, stages, status, started_at, finished_at, seed_count, page_count, error, stats`

func scanRun(row interface{ Scan(...any) error }) (*model.Run, error) {
	var (
		run        model.Run
		stages     string
		status     string
		startedAt  string
		finishedAt sql.NullString
		errMsg     sql.NullString
		statsJSON  sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&stages,
		&status,
		&startedAt,
		&finishedAt,
		&run.SeedCount,
		&run.PageCount,
		&errMsg,
		&statsJSON,
	); err != nil {
		return nil, err
	}
	for _, s := range strings.Split(stages, ",") {
		if s != "" {
			run.Stages = append(run.Stages, model.Stage(s))
		}
	}
	run.Status = model.RunStatus(status)
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	run.Error = errMsg.String
	if statsJSON.Valid && statsJSON.String != "" && statsJSON.String != "null" {
		if err := json.Unmarshal([]byte(statsJSON.String), &run.Stats); err != nil {
			return nil, fmt.Errorf("failed to parse stats: %w", err)
		}
	}
	return &run, nil
}

// GetRun returns the run with id, or nil when absent.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := scanRun(cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first. limit <= 0 returns all of them.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// timestampLayout sorts lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the layouts accepted when reading timestamps back,
// including what SQLite's CURRENT_TIMESTAMP produces.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
