package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

const (
	LatestTableFile  = "features_latest.csv"
	LatestReportFile = "run_latest.json"
)

// WriteTable writes the header and every row in table order
func WriteTable(w io.Writer, table *contracts.FeatureTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return err
	}
	for i := range table.Rows {
		if err := cw.Write(table.Record(&table.Rows[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVWriter persists each run as a CSV table plus a JSON run report
// ⭐ SSOT: 파일 출력 경로 규칙은 여기서만
type CSVWriter struct {
	dir    string
	logger *logger.Logger
}

// NewCSVWriter creates a writer rooted at dir
func NewCSVWriter(dir string, log *logger.Logger) *CSVWriter {
	return &CSVWriter{
		dir:    dir,
		logger: log.WithComponent("export"),
	}
}

// TablePath returns the per-run table path
func (w *CSVWriter) TablePath(runID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("features_%s.csv", runID))
}

// Write implements contracts.FeatureWriter.
// Files are written to a temp name and renamed so readers never see a
// partial table; the *_latest copies are replaced last.
func (w *CSVWriter) Write(ctx context.Context, report *contracts.RunReport, table *contracts.FeatureTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	writeTable := func(f io.Writer) error { return WriteTable(f, table) }
	writeReport := func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	targets := []struct {
		path  string
		write func(io.Writer) error
	}{
		{w.TablePath(report.RunID), writeTable},
		{filepath.Join(w.dir, fmt.Sprintf("run_%s.json", report.RunID)), writeReport},
		{filepath.Join(w.dir, LatestTableFile), writeTable},
		{filepath.Join(w.dir, LatestReportFile), writeReport},
	}

	for _, t := range targets {
		if err := atomicWrite(t.path, t.write); err != nil {
			return fmt.Errorf("write %s: %w", t.path, err)
		}
	}

	w.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"rows":   table.Count(),
		"path":   w.TablePath(report.RunID),
	}).Info("Feature table exported")

	return nil
}

func atomicWrite(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Prune removes per-run files beyond the keep most recent runs.
// The *_latest copies are never touched. Returns the number of runs removed.
func (w *CSVWriter) Prune(keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	entries, err := os.ReadDir(w.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	type run struct {
		id      string
		modTime int64
	}
	var runs []run
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == LatestTableFile || !strings.HasPrefix(name, "features_") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "features_"), ".csv")
		runs = append(runs, run{id: id, modTime: info.ModTime().UnixNano()})
	}
	if len(runs) <= keep {
		return 0, nil
	}

	// newest first, id breaks ties
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].modTime != runs[j].modTime {
			return runs[i].modTime > runs[j].modTime
		}
		return runs[i].id > runs[j].id
	})

	removed := 0
	for _, r := range runs[keep:] {
		for _, path := range []string{w.TablePath(r.id), filepath.Join(w.dir, fmt.Sprintf("run_%s.json", r.id))} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("remove %s: %w", path, err)
			}
		}
		removed++
	}

	w.logger.WithFields(map[string]interface{}{
		"removed": removed,
		"kept":    keep,
	}).Info("Old feature exports pruned")

	return removed, nil
}
