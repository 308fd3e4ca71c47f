package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stockhunter/stockhunter/internal/analyze"
	"github.com/stockhunter/stockhunter/internal/strategy"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// ErrNotFound is returned when a requested report file does not exist.
var ErrNotFound = errors.New("report: not found")

var baseColumns = []string{
	"code", "name", "date", "close",
	"ma5", "ma20", "ma60", "year_line",
	"trend", "macd", "kdj", "rsi",
	"volume_ratio", "volume_state",
	"resistance", "support", "resistance_dist", "support_dist",
	"trajectory", "reason", "watchlisted",
}

var returnColumns = []string{
	"return_5d", "return_10d", "return_30d", "max_gain_30d",
}

var adviceColumns = []string{"advice", "rationale"}

var fileNameRe = regexp.MustCompile(`^(analysis|backtest)_result_(\d{8})\.csv$`)

// Meta describes one stored report file.
type Meta struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
	Date string `json:"date"` // YYYY-MM-DD
}

// Store persists one result CSV per analysis run under the output dir.
type Store struct {
	dir    string
	logger *logger.Logger
}

// New creates a report store rooted at dir.
func New(dir string, log *logger.Logger) *Store {
	return &Store{dir: dir, logger: log.WithField("module", "report")}
}

// FileName derives the report file name for a run. Backtest reports
// are keyed by the evaluation date, current-mode reports by the run
// date.
func FileName(res *analyze.Result, runDate time.Time) string {
	prefix := "analysis"
	date := runDate.Format("20060102")
	if res.Mode == analyze.ModeBacktest {
		prefix = "backtest"
		date = strings.ReplaceAll(res.Date, "-", "")
	}
	return fmt.Sprintf("%s_result_%s.csv", prefix, date)
}

// Write persists the run's rows and returns the file name. The write
// is atomic so a crash never leaves a truncated report behind.
func (s *Store) Write(res *analyze.Result, runDate time.Time) (string, error) {
	name := FileName(res, runDate)

	header := append([]string{}, baseColumns...)
	if res.Mode == analyze.ModeBacktest {
		header = append(header, returnColumns...)
	}
	header = append(header, adviceColumns...)

	rows := make([][]string, 0, len(res.Rows))
	for i := range res.Rows {
		rows = append(rows, encodeRow(&res.Rows[i], res.Mode))
	}

	if err := s.writeAtomic(name, header, rows); err != nil {
		return "", err
	}
	s.logger.WithFields(map[string]interface{}{
		"file": name,
		"rows": len(rows),
	}).Info("Report written")
	return name, nil
}

func encodeRow(row *analyze.Row, mode analyze.Mode) []string {
	snap := row.Snapshot
	out := []string{
		row.Code,
		row.Name,
		snap.Date,
		formatFloat(snap.Close),
		formatFloat(snap.MA5),
		formatFloat(snap.MA20),
		formatFloat(snap.MA60),
		snap.YearLineLabel(),
		snap.TrendState,
		snap.MACDState,
		snap.KDJState,
		formatFloat(snap.RSI),
		formatFloat(snap.VolumeRatio),
		snap.VolumeState,
		formatFloat(snap.Resistance),
		formatFloat(snap.Support),
		formatFloat(snap.ResistanceDist),
		formatFloat(snap.SupportDist),
		snap.RecentTrajectory,
		row.Reason,
		strconv.FormatBool(row.Watchlisted),
	}
	if mode == analyze.ModeBacktest {
		out = append(out,
			formatReturn(row.Returns.T5),
			formatReturn(row.Returns.T10),
			formatReturn(row.Returns.T30),
			formatReturn(row.Returns.MaxGain),
		)
	}
	return append(out, row.Advice, row.Rationale)
}

// formatReturn renders a forward return as a percentage, or an empty
// cell when the horizon is not yet determinable.
func formatReturn(h strategy.Horizon) string {
	if !h.Known {
		return ""
	}
	return fmt.Sprintf("%.2f%%", h.Value*100)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *Store) writeAtomic(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// List enumerates stored reports, newest first.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var metas []Meta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		d := m[2]
		metas = append(metas, Meta{
			Name: e.Name(),
			Mode: m[1],
			Date: d[:4] + "-" + d[4:6] + "-" + d[6:],
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Date != metas[j].Date {
			return metas[i].Date > metas[j].Date
		}
		return metas[i].Name < metas[j].Name
	})
	return metas, nil
}

// Read loads a stored report by file name.
func (s *Store) Read(name string) (header []string, rows [][]string, err error) {
	if !fileNameRe.MatchString(name) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse report: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}
