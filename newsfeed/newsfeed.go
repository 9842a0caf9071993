package newsfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NewsFeed is the append-only CSV store of captured articles. A single
// writer is assumed; the file may be absent, empty or corrupt on any read.
type NewsFeed struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// KnownKeys holds the dedup keys of every stored article.
type KnownKeys struct {
	URLs   map[string]struct{}
	Titles map[string]struct{}
}

func newKnownKeys() *KnownKeys {
	return &KnownKeys{
		URLs:   make(map[string]struct{}),
		Titles: make(map[string]struct{}),
	}
}

// HasURL reports whether url is already stored.
func (k *KnownKeys) HasURL(url string) bool {
	_, ok := k.URLs[url]
	return ok
}

// HasTitle reports whether title is already stored.
func (k *KnownKeys) HasTitle(title string) bool {
	_, ok := k.Titles[title]
	return ok
}

// VerifyResult describes the store file as found at startup.
type VerifyResult struct {
	Exists        bool
	Rows          int
	Columns       []string
	QuarantinedTo string
}

// ReadError describes a store file that could not be parsed.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type table struct {
	header []string
	rows   [][]string
}

func (t *table) index() map[string]int {
	idx := make(map[string]int, len(t.header))
	for i, col := range t.header {
		idx[col] = i
	}
	return idx
}

// NewNewsFeed creates a store backed by the CSV file at path, creating its
// directory if needed.
func NewNewsFeed(path string, logger *slog.Logger) (*NewsFeed, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NewsFeed{
		path:   path,
		logger: logger,
		now:    time.Now,
		rename: os.Rename,
	}, nil
}

// Path returns the location of the CSV file.
func (nf *NewsFeed) Path() string {
	return nf.path
}

// readTable loads the whole file. A missing or zero-length file yields a nil
// table and no error; a structurally invalid file yields a *ReadError.
func (nf *NewsFeed) readTable() (*table, error) {
	f, err := os.Open(nf.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &ReadError{Filename: nf.path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &ReadError{Filename: nf.path, Err: err}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ReadError{Filename: nf.path, Err: err}
	}

	// Short rows are padded with empty cells; a row wider than the header
	// has no column to put its extra cells in.
	for i, row := range rows {
		switch {
		case len(row) > len(header):
			return nil, &ReadError{
				Filename: nf.path,
				Err:      fmt.Errorf("record %d has %d fields, header has %d", i+1, len(row), len(header)),
			}
		case len(row) < len(header):
			padded := make([]string, len(header))
			copy(padded, row)
			rows[i] = padded
		}
	}

	return &table{header: header, rows: rows}, nil
}

// Known returns the URLs and titles already stored. A corrupt file is
// renamed aside and an empty key set is returned so scraping can continue;
// the error is non-nil only if that rename fails.
func (nf *NewsFeed) Known() (*KnownKeys, error) {
	keys := newKnownKeys()

	tbl, err := nf.readTable()
	if err != nil {
		nf.logger.Error("Failed to read article store", "path", nf.path, "error", err)
		if _, qerr := nf.quarantine("backup"); qerr != nil {
			return keys, qerr
		}
		return keys, nil
	}
	if tbl == nil {
		return keys, nil
	}

	idx := tbl.index()
	urlCol, hasURL := idx["url"]
	titleCol, hasTitle := idx["title"]
	for _, row := range tbl.rows {
		if hasURL {
			keys.URLs[row[urlCol]] = struct{}{}
		}
		if hasTitle {
			keys.Titles[row[titleCol]] = struct{}{}
		}
	}

	nf.logger.Info("Loaded existing articles", "path", nf.path, "count", len(keys.URLs))
	return keys, nil
}

// Append adds items to the end of the store. When the file's columns differ
// from Columns, both sets are widened with empty cells and the new rows follow
// the existing column order. If the store cannot be written, the batch is
// saved to an emergency side-file before the error is returned.
func (nf *NewsFeed) Append(items []NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]map[string]string, 0, len(items))
	for _, item := range items {
		records = append(records, item.record())
	}

	if err := nf.appendRecords(records); err != nil {
		emergency, eerr := nf.writeFile(nf.sidePath("emergency"), Columns, alignRows(Columns, records))
		if eerr != nil {
			nf.logger.Error("Failed to write emergency backup", "error", eerr)
			return fmt.Errorf("failed to save %d articles: %w", len(items), err)
		}
		nf.logger.Warn("Saved batch to emergency backup", "path", emergency, "count", len(items))
		return fmt.Errorf("failed to save %d articles (batch kept in %s): %w", len(items), emergency, err)
	}

	nf.logger.Info("Appended articles", "path", nf.path, "count", len(items))
	return nil
}

func (nf *NewsFeed) appendRecords(records []map[string]string) error {
	tbl, err := nf.readTable()
	if err != nil {
		nf.logger.Error("Failed to read article store before append", "path", nf.path, "error", err)
		if _, qerr := nf.quarantine("backup"); qerr != nil {
			return qerr
		}
		tbl = nil
	}

	if tbl == nil {
		_, err := nf.writeFile(nf.path, Columns, alignRows(Columns, records))
		return err
	}

	header := widen(tbl.header, Columns)
	newRows := alignRows(header, records)

	if len(header) == len(tbl.header) {
		return nf.appendRows(newRows)
	}

	nf.logger.Info("Adding columns to article store", "columns", header[len(tbl.header):])
	rows := make([][]string, 0, len(tbl.rows)+len(newRows))
	for _, row := range tbl.rows {
		padded := make([]string, len(header))
		copy(padded, row)
		rows = append(rows, padded)
	}
	rows = append(rows, newRows...)

	_, err = nf.writeFile(nf.path, header, rows)
	return err
}

// appendRows writes rows to the end of the existing file, first terminating
// a last line that lacks its newline.
func (nf *NewsFeed) appendRows(rows [][]string) error {
	f, err := os.OpenFile(nf.path, os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}

	if err := terminateLastLine(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to article store: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to article store: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close article store: %w", err)
	}
	return nil
}

func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// writeFile replaces path with header and rows via a temporary file.
func (nf *NewsFeed) writeFile(path string, header []string, rows [][]string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".articles-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := nf.rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return path, nil
}

// List returns every stored article in file order.
func (nf *NewsFeed) List() ([]NewsItem, error) {
	tbl, err := nf.readTable()
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return []NewsItem{}, nil
	}

	idx := tbl.index()
	items := make([]NewsItem, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		items = append(items, itemFromRow(row, idx))
	}
	return items, nil
}

// Count returns the number of stored articles.
func (nf *NewsFeed) Count() (int, error) {
	tbl, err := nf.readTable()
	if err != nil {
		return 0, err
	}
	if tbl == nil {
		return 0, nil
	}
	return len(tbl.rows), nil
}

// Verify checks that the store parses, quarantining it if it does not.
func (nf *NewsFeed) Verify() (*VerifyResult, error) {
	result := &VerifyResult{}

	tbl, err := nf.readTable()
	if err != nil {
		result.Exists = true
		nf.logger.Error("Article store failed verification", "path", nf.path, "error", err)
		moved, qerr := nf.quarantine("corrupted")
		if qerr != nil {
			return result, qerr
		}
		result.QuarantinedTo = moved
		return result, nil
	}

	if tbl == nil {
		_, statErr := os.Stat(nf.path)
		result.Exists = statErr == nil
		nf.logger.Info("Article store is empty or does not exist yet", "path", nf.path)
		return result, nil
	}

	result.Exists = true
	result.Rows = len(tbl.rows)
	result.Columns = tbl.header
	nf.logger.Info("Article store verified", "rows", result.Rows, "columns", result.Columns)
	return result, nil
}

// quarantine renames the store aside and returns its new path.
func (nf *NewsFeed) quarantine(kind string) (string, error) {
	target := nf.sidePath(kind)
	if err := os.Rename(nf.path, target); err != nil {
		nf.logger.Error("Failed to quarantine article store", "path", nf.path, "error", err)
		return "", fmt.Errorf("failed to quarantine %s: %w", nf.path, err)
	}
	nf.logger.Warn("Quarantined article store", "path", nf.path, "moved_to", target)
	return target, nil
}

// sidePath names a sibling file such as articles_backup_1715660000.csv,
// adding a counter if that name is taken.
func (nf *NewsFeed) sidePath(kind string) string {
	dir := filepath.Dir(nf.path)
	ext := filepath.Ext(nf.path)
	stem := strings.TrimSuffix(filepath.Base(nf.path), ext)
	if ext == "" {
		ext = ".csv"
	}
	stamp := nf.now().Unix()

	candidate := filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", stem, kind, stamp, ext))
	for n := 1; fileExists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%s_%d-%d%s", stem, kind, stamp, n, ext))
	}
	return candidate
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// widen returns existing followed by any column of wanted it lacks.
func widen(existing, wanted []string) []string {
	header := append([]string{}, existing...)
	have := make(map[string]bool, len(existing))
	for _, col := range existing {
		have[col] = true
	}
	for _, col := range wanted {
		if !have[col] {
			header = append(header, col)
		}
	}
	return header
}

// alignRows lays records out in header order, leaving unknown columns empty.
func alignRows(header []string, records []map[string]string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return rows
}
