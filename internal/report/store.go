package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// EvaluationsFile is the file name WriteRowsCSV output is usually saved as.
const EvaluationsFile = "all_evaluations.csv"

var rowHeader = []string{
	"user_id", "year", "month", "component",
	"ethical_flag", "confidence", "similarity_score", "best_approach",
}

// Path returns where Save writes r under dir:
// dir/<year>/<Month>/<user>_<year>_<Month>.json.
func Path(dir string, r *model.Report) string {
	m := r.Metadata
	year := strconv.Itoa(m.Year)
	return filepath.Join(dir, year, m.Month, fmt.Sprintf("%s_%s_%s.json", m.UserID, year, m.Month))
}

// Save writes r as indented JSON and returns the file path.
func Save(r *model.Report, dir string) (string, error) {
	if r == nil || r.Metadata.UserID == "" || r.Metadata.Month == "" {
		return "", common.InvalidArgumentf("report is missing metadata")
	}

	path := Path(dir, r)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Load reads one report file.
func Load(path string) (*model.Report, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}

// LoadDir loads every *.json report below dir in path order. Files that do
// not decode are logged and skipped.
func LoadDir(dir string) ([]*model.Report, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan reports: %w", err)
	}
	sort.Strings(paths)

	reports := make([]*model.Report, 0, len(paths))
	for _, p := range paths {
		r, err := Load(p)
		if err != nil {
			slog.Warn("Skipping report", "path", p, "error", err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// EvaluationRows flattens reports into one row per evaluated component.
// Components are emitted in name order within each report.
func EvaluationRows(reports []*model.Report) []model.EvaluationRow {
	var rows []model.EvaluationRow
	for _, r := range reports {
		components := make([]model.Component, 0, len(r.Evaluation))
		for c := range r.Evaluation {
			components = append(components, c)
		}
		sort.Slice(components, func(i, j int) bool { return components[i] < components[j] })

		for _, c := range components {
			eval := r.Evaluation[c]
			rows = append(rows, model.EvaluationRow{
				UserID:          r.Metadata.UserID,
				Year:            r.Metadata.Year,
				Month:           r.Metadata.Month,
				Component:       c,
				EthicalFlag:     eval.EthicalFlag,
				Confidence:      eval.Confidence,
				SimilarityScore: eval.SimilarityScore,
				BestApproach:    r.BestApproaches[c],
			})
		}
	}
	return rows
}

// WriteRowsCSV writes rows with a header line.
func WriteRowsCSV(w io.Writer, rows []model.EvaluationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.UserID,
			strconv.Itoa(row.Year),
			row.Month,
			string(row.Component),
			row.EthicalFlag,
			strconv.FormatFloat(row.Confidence, 'f', -1, 64),
			strconv.FormatFloat(row.SimilarityScore, 'f', -1, 64),
			string(row.BestApproach),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
