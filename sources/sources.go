package sources

import (
	"database/sql"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/newsharvest/scraper"
)

// Custom errors for source operations
var (
	ErrSourceNotFound = errors.New("source not found")
	ErrDuplicateURL   = errors.New("source with this URL already exists")
	ErrInvalidURL     = errors.New("source url must be an absolute http(s) URL")
)

// SourceStore records the listing pages harvested by the scraper and how
// each of them has behaved over time.
type SourceStore struct {
	db *sql.DB
}

// Source is one listing page (a site category) and its fetch history.
type Source struct {
	SourceID        uuid.UUID  `json:"source_id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	FeedURL         *string    `json:"feed_url,omitempty"`
	EnabledAt       *time.Time `json:"enabled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastFetchedAt   *time.Time `json:"last_fetched_at,omitempty"`
	FetchErrorCount int        `json:"fetch_error_count"`
	LastError       *string    `json:"last_error,omitempty"`
	LastLinkCount   int        `json:"last_link_count"`
}

// IsEnabled returns true if the source is currently enabled.
func (s *Source) IsEnabled() bool {
	return s.EnabledAt != nil
}

// Category returns the source as a harvestable category.
func (s *Source) Category() scraper.Category {
	c := scraper.Category{Name: s.Name, URL: s.URL}
	if s.FeedURL != nil {
		c.FeedURL = *s.FeedURL
	}
	return c
}

// SourceUpdate represents fields that can be updated on a source.
type SourceUpdate struct {
	Name            *string
	FeedURL         *string
	ClearFeedURL    bool // Set to true to set feed_url to NULL
	EnabledAt       *time.Time
	ClearEnabledAt  bool // Set to true to set enabled_at to NULL
	LastFetchedAt   *time.Time
	FetchErrorCount *int
	LastError       *string
	ClearLastError  bool
	LastLinkCount   *int
}

// SourceFilter represents filtering options for listing sources.
type SourceFilter struct {
	Enabled *bool // Filter by enabled status
	Limit   int   // Pagination limit
	Offset  int   // Pagination offset
}

// NewSourceStore creates a new source store with the given database path.
func NewSourceStore(dbPath string) (*SourceStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SourceStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the sources table if it doesn't exist.
func (s *SourceStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		feed_url TEXT,
		enabled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_fetched_at TEXT,
		fetch_error_count INTEGER DEFAULT 0,
		last_error TEXT,
		last_link_count INTEGER DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

// CreateSource creates a new source.
func (s *SourceStore) CreateSource(name, url, feedURL string, enabledAt *time.Time) (*Source, error) {
	if !validURL(url) {
		return nil, ErrInvalidURL
	}

	now := time.Now()
	source := &Source{
		SourceID:  uuid.New(),
		Name:      name,
		URL:       url,
		EnabledAt: enabledAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if feedURL != "" {
		source.FeedURL = &feedURL
	}

	query := `
		INSERT INTO sources (
			source_id, name, url, feed_url, enabled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		source.SourceID.String(),
		source.Name,
		source.URL,
		nullString(source.FeedURL),
		formatTime(source.EnabledAt),
		formatTime(&source.CreatedAt),
		formatTime(&source.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return source, nil
}

// SyncCategories makes sure every configured category has a source row.
// Existing rows keep their enabled state and history; only the name and
// feed URL are refreshed.
func (s *SourceStore) SyncCategories(categories []scraper.Category) ([]Source, error) {
	synced := make([]Source, 0, len(categories))
	for _, cat := range categories {
		existing, err := s.GetSourceByURL(cat.URL)
		if errors.Is(err, ErrSourceNotFound) {
			now := time.Now()
			created, err := s.CreateSource(cat.Name, cat.URL, cat.FeedURL, &now)
			if err != nil {
				return nil, fmt.Errorf("failed to create source %s: %w", cat.URL, err)
			}
			synced = append(synced, *created)
			continue
		}
		if err != nil {
			return nil, err
		}

		update := SourceUpdate{Name: &cat.Name}
		if cat.FeedURL != "" {
			update.FeedURL = &cat.FeedURL
		} else {
			update.ClearFeedURL = true
		}
		if err := s.UpdateSource(existing.SourceID, update); err != nil {
			return nil, fmt.Errorf("failed to update source %s: %w", cat.URL, err)
		}

		refreshed, err := s.GetSource(existing.SourceID)
		if err != nil {
			return nil, err
		}
		synced = append(synced, *refreshed)
	}

	return synced, nil
}

const selectColumns = `
	SELECT source_id, name, url, feed_url, enabled_at,
	       created_at, updated_at, last_fetched_at,
	       fetch_error_count, last_error, last_link_count
	FROM sources
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// GetSource retrieves a source by ID.
func (s *SourceStore) GetSource(sourceID uuid.UUID) (*Source, error) {
	row := s.db.QueryRow(selectColumns+" WHERE source_id = ?", sourceID.String())
	return s.getOne(row)
}

// GetSourceByURL retrieves a source by its listing URL.
func (s *SourceStore) GetSourceByURL(url string) (*Source, error) {
	row := s.db.QueryRow(selectColumns+" WHERE url = ?", url)
	return s.getOne(row)
}

func (s *SourceStore) getOne(row rowScanner) (*Source, error) {
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}
	return source, nil
}

// ListSources lists sources with optional filtering, in insertion order so
// that categories are harvested in the order they were configured.
func (s *SourceStore) ListSources(filter SourceFilter) ([]Source, error) {
	query := selectColumns

	var whereClauses []string
	if filter.Enabled != nil {
		if *filter.Enabled {
			whereClauses = append(whereClauses, "enabled_at IS NOT NULL")
		} else {
			whereClauses = append(whereClauses, "enabled_at IS NULL")
		}
	}

	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query += " ORDER BY rowid ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	return sources, rows.Err()
}

// UpdateSource updates a source with the provided fields.
func (s *SourceStore) UpdateSource(sourceID uuid.UUID, update SourceUpdate) error {
	setClauses := []string{"updated_at = ?"}
	now := time.Now()
	args := []any{formatTime(&now)}

	if update.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *update.Name)
	}
	if update.ClearFeedURL {
		setClauses = append(setClauses, "feed_url = ?")
		args = append(args, nil)
	} else if update.FeedURL != nil {
		setClauses = append(setClauses, "feed_url = ?")
		args = append(args, *update.FeedURL)
	}
	if update.ClearEnabledAt {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, nil)
	} else if update.EnabledAt != nil {
		setClauses = append(setClauses, "enabled_at = ?")
		args = append(args, formatTime(update.EnabledAt))
	}
	if update.LastFetchedAt != nil {
		setClauses = append(setClauses, "last_fetched_at = ?")
		args = append(args, formatTime(update.LastFetchedAt))
	}
	if update.FetchErrorCount != nil {
		setClauses = append(setClauses, "fetch_error_count = ?")
		args = append(args, *update.FetchErrorCount)
	}
	if update.ClearLastError {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, nil)
	} else if update.LastError != nil {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, *update.LastError)
	}
	if update.LastLinkCount != nil {
		setClauses = append(setClauses, "last_link_count = ?")
		args = append(args, *update.LastLinkCount)
	}

	args = append(args, sourceID.String())

	query := fmt.Sprintf("UPDATE sources SET %s WHERE source_id = ?",
		strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// SetEnabled enables or disables a source. Enabling also resets its error
// count so it is not immediately disabled again.
func (s *SourceStore) SetEnabled(sourceID uuid.UUID, enabled bool) error {
	if !enabled {
		return s.UpdateSource(sourceID, SourceUpdate{ClearEnabledAt: true})
	}
	now := time.Now()
	zero := 0
	return s.UpdateSource(sourceID, SourceUpdate{
		EnabledAt:       &now,
		FetchErrorCount: &zero,
		ClearLastError:  true,
	})
}

// RecordFetchSuccess notes a listing fetch that produced linkCount links.
func (s *SourceStore) RecordFetchSuccess(sourceID uuid.UUID, linkCount int) error {
	now := time.Now()
	zero := 0
	return s.UpdateSource(sourceID, SourceUpdate{
		LastFetchedAt:   &now,
		FetchErrorCount: &zero,
		ClearLastError:  true,
		LastLinkCount:   &linkCount,
	})
}

// RecordFetchError notes a failed listing fetch. Once the consecutive error
// count reaches disableThreshold the source is disabled; a threshold of zero
// never disables. It reports whether the source was disabled by this call.
func (s *SourceStore) RecordFetchError(sourceID uuid.UUID, fetchErr error, disableThreshold int) (bool, error) {
	source, err := s.GetSource(sourceID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	count := source.FetchErrorCount + 1
	msg := fetchErr.Error()
	zero := 0
	update := SourceUpdate{
		LastFetchedAt:   &now,
		FetchErrorCount: &count,
		LastError:       &msg,
		LastLinkCount:   &zero,
	}

	disable := disableThreshold > 0 && count >= disableThreshold && source.IsEnabled()
	if disable {
		update.ClearEnabledAt = true
	}

	if err := s.UpdateSource(sourceID, update); err != nil {
		return false, err
	}
	return disable, nil
}

// DeleteSource deletes a source.
func (s *SourceStore) DeleteSource(sourceID uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE source_id = ?", sourceID.String())
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// scanSource parses one row of selectColumns into a Source.
func scanSource(row rowScanner) (*Source, error) {
	var sourceIDStr, name, url, createdAtStr, updatedAtStr string
	var feedURL, enabledAtStr, lastFetchedAtStr, lastError sql.NullString
	var fetchErrorCount, lastLinkCount int

	err := row.Scan(
		&sourceIDStr, &name, &url, &feedURL, &enabledAtStr,
		&createdAtStr, &updatedAtStr, &lastFetchedAtStr,
		&fetchErrorCount, &lastError, &lastLinkCount,
	)
	if err != nil {
		return nil, err
	}

	sourceID, err := uuid.Parse(sourceIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}

	source := &Source{
		SourceID:        sourceID,
		Name:            name,
		URL:             url,
		CreatedAt:       parseTime(createdAtStr),
		UpdatedAt:       parseTime(updatedAtStr),
		FetchErrorCount: fetchErrorCount,
		LastLinkCount:   lastLinkCount,
	}

	if feedURL.Valid {
		source.FeedURL = &feedURL.String
	}
	if enabledAtStr.Valid {
		t := parseTime(enabledAtStr.String)
		source.EnabledAt = &t
	}
	if lastFetchedAtStr.Valid {
		t := parseTime(lastFetchedAtStr.String)
		source.LastFetchedAt = &t
	}
	if lastError.Valid {
		source.LastError = &lastError.String
	}

	return source, nil
}

// validURL reports whether raw is an absolute http(s) URL.
func validURL(raw string) bool {
	u, err := neturl.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
