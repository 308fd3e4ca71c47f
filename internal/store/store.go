package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/stockhunter/stockhunter/pkg/logger"
)

// ErrNotFound is returned when no series file exists for a symbol.
var ErrNotFound = errors.New("series not found")

// Columns is the fixed on-disk column order of a series file.
// Merges must preserve this exact order.
var Columns = []string{"date", "code", "open", "high", "low", "close", "volume", "amount", "adjustflag", "turn", "pctChg"}

// minTailBytes is the smallest file that can hold a header plus one
// record; anything shorter gets a full parse instead of a tail read.
const minTailBytes = 50

// MergeMode selects how incoming records are combined with the
// existing series.
type MergeMode int

const (
	// MergeFull overwrites the series with the incoming records.
	MergeFull MergeMode = iota
	// MergeAppend unions existing and incoming records, deduplicates
	// by date keeping the incoming record, and re-sorts ascending.
	MergeAppend
)

// Symbol identifies one instrument. Code is globally unique; Name may
// go stale upstream and is only refreshed when the file is recreated.
type Symbol struct {
	Code string
	Name string
}

// Record is one calendar day of one symbol's series.
type Record struct {
	Date       string // YYYY-MM-DD
	Code       string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Amount     string
	AdjustFlag string
	Turn       string
	PctChg     float64
}

// Store is the per-symbol daily series file store. Files are
// partitioned by symbol, so concurrent writers for different symbols
// never contend. Writes are atomic: a reader never observes a
// partially written file.
type Store struct {
	dir    string
	logger *logger.Logger
}

// New creates a Store rooted at dir.
func New(dir string, log *logger.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: log.WithField("module", "store"),
	}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// SanitizeName strips characters that cannot appear in a file name.
func SanitizeName(name string) string {
	r := strings.NewReplacer("*", "", "/", "", "?", "", "\\", "", ":", "")
	return r.Replace(name)
}

// FileName returns the storage key for a symbol.
func FileName(sym Symbol) string {
	return fmt.Sprintf("%s_%s.csv", sym.Code, SanitizeName(sym.Name))
}

// ParseFileName decodes the (code, name) pair from a storage key.
func ParseFileName(name string) (Symbol, bool) {
	base := strings.TrimSuffix(name, ".csv")
	if base == name {
		return Symbol{}, false
	}
	code, display, ok := strings.Cut(base, "_")
	if !ok || code == "" {
		return Symbol{}, false
	}
	return Symbol{Code: code, Name: display}, true
}

func (s *Store) path(sym Symbol) string {
	return filepath.Join(s.dir, FileName(sym))
}

// Exists reports whether a series file exists for the symbol.
func (s *Store) Exists(sym Symbol) bool {
	_, err := os.Stat(s.path(sym))
	return err == nil
}

// List enumerates all stored symbols.
func (s *Store) List() ([]Symbol, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	symbols := make([]Symbol, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sym, ok := ParseFileName(e.Name()); ok {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

// Lookup finds the stored symbol for a code, recovering the display
// name from the storage key.
func (s *Store) Lookup(code string) (Symbol, bool) {
	symbols, err := s.List()
	if err != nil {
		return Symbol{}, false
	}
	for _, sym := range symbols {
		if sym.Code == code {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Load reads the full ordered series for a symbol.
func (s *Store) Load(sym Symbol) ([]Record, error) {
	f, err := os.Open(s.path(sym))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", sym.Code, ErrNotFound)
		}
		return nil, fmt.Errorf("open series %s: %w", sym.Code, err)
	}
	defer f.Close()

	return readRecords(f)
}

// LastDate returns the date of the final record without parsing the
// whole file. It seeks to the tail and reads the last line; when the
// tail is ambiguous (file shorter than one record, malformed last
// line) it falls back to a full parse. Returns "" when the series
// holds no records.
func (s *Store) LastDate(sym Symbol) (string, error) {
	f, err := os.Open(s.path(sym))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", sym.Code, ErrNotFound)
		}
		return "", fmt.Errorf("open series %s: %w", sym.Code, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat series %s: %w", sym.Code, err)
	}

	if info.Size() >= minTailBytes {
		if date, ok := lastDateFromTail(f, info.Size()); ok {
			return date, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind series %s: %w", sym.Code, err)
		}
	}

	// Fallback: full parse.
	records, err := readRecords(f)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[len(records)-1].Date, nil
}

// lastDateFromTail scans backwards from the end of the file for the
// final line and extracts its first field.
func lastDateFromTail(f *os.File, size int64) (string, bool) {
	const window = 512

	offset := size - window
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return "", false
	}

	text := strings.TrimRight(string(buf), "\r\n")
	if text == "" {
		return "", false
	}
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else if offset > 0 {
		// The last line starts before our window; tail read is ambiguous.
		return "", false
	}

	date, _, _ := strings.Cut(strings.TrimRight(text, "\r"), ",")
	if !isDate(date) {
		return "", false
	}
	return date, true
}

// isDate checks the YYYY-MM-DD shape without validating the calendar.
func isDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Merge combines incoming records into the symbol's series and writes
// the result atomically. In MergeAppend mode dates that appear in both
// existing and incoming keep the incoming record; the result is
// re-sorted ascending. A failed write leaves the previous file intact.
func (s *Store) Merge(sym Symbol, incoming []Record, mode MergeMode) error {
	if len(incoming) == 0 {
		return nil
	}

	var existing []Record
	if mode == MergeAppend {
		var err error
		existing, err = s.Load(sym)
		if err != nil && !errors.Is(err, ErrNotFound) {
			// Unreadable existing file: overwrite with the fresh data.
			s.logger.WithError(err).WithField("code", sym.Code).Warn("Existing series unreadable, overwriting")
			existing = nil
		}
	}
	final := dedupeByDate(existing, incoming)

	sort.Slice(final, func(i, j int) bool { return final[i].Date < final[j].Date })

	if err := s.writeAtomic(sym, final); err != nil {
		return fmt.Errorf("write series %s: %w", sym.Code, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"code":     sym.Code,
		"incoming": len(incoming),
		"total":    len(final),
	}).Debug("Merged series")

	return nil
}

// dedupeByDate unions existing and incoming, keeping the last
// incoming record when dates collide. Duplicates inside the incoming
// batch itself collapse the same way, so the result stays date-unique.
func dedupeByDate(existing, incoming []Record) []Record {
	replaced := make(map[string]bool, len(incoming))
	for _, rec := range incoming {
		replaced[rec.Date] = true
	}

	final := make([]Record, 0, len(existing)+len(incoming))
	for _, rec := range existing {
		if !replaced[rec.Date] {
			final = append(final, rec)
		}
	}

	lastAt := make(map[string]int, len(incoming))
	for i, rec := range incoming {
		lastAt[rec.Date] = i
	}
	for i, rec := range incoming {
		if lastAt[rec.Date] == i {
			final = append(final, rec)
		}
	}
	return final
}

// writeAtomic writes records to a temp file in the same directory and
// renames it over the target, so readers never see a partial file.
func (s *Store) writeAtomic(sym Symbol, records []Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".series-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeRecords(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(sym)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// readRecords parses the CSV body, tolerating a missing header and
// coercing unparseable numerics to zero.
func readRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse series csv: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(Columns) {
			continue
		}
		if !isDate(row[0]) {
			continue // header or junk line
		}
		records = append(records, Record{
			Date:       row[0],
			Code:       row[1],
			Open:       toFloat(row[2]),
			High:       toFloat(row[3]),
			Low:        toFloat(row[4]),
			Close:      toFloat(row[5]),
			Volume:     toFloat(row[6]),
			Amount:     row[7],
			AdjustFlag: row[8],
			Turn:       row[9],
			PctChg:     toFloat(row[10]),
		})
	}
	return records, nil
}

func writeRecords(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Date,
			rec.Code,
			formatFloat(rec.Open),
			formatFloat(rec.High),
			formatFloat(rec.Low),
			formatFloat(rec.Close),
			formatFloat(rec.Volume),
			rec.Amount,
			rec.AdjustFlag,
			rec.Turn,
			formatFloat(rec.PctChg),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", rec.Date, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func toFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
