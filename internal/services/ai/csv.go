package ai

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

var backlogHeader = []string{"scan_id", "url", "wcag_level", "existing_issues"}

// BacklogRow is one scan in the backlog exchange format. The same shape
// serves both directions: issues are the pre-analysis findings on export
// and the enriched findings in the result file.
type BacklogRow struct {
	ScanID    string
	URL       string
	WCAGLevel models.WCAGLevel
	Issues    []*models.Issue
}

// ExportBacklogCSV writes every AI-enabled scan still awaiting analysis,
// one row per scan with its existing issues as embedded JSON. Returns the
// number of rows written.
func (a *Analyzer) ExportBacklogCSV(ctx context.Context, w io.Writer) (int, error) {
	scans, err := a.scans.ListScansPendingAI(ctx)
	if err != nil {
		return 0, err
	}

	rows := make([]*BacklogRow, 0, len(scans))
	for _, scan := range scans {
		row := &BacklogRow{ScanID: scan.ID, URL: scan.URL, WCAGLevel: scan.WCAGLevel}
		if result, err := a.scans.GetResult(ctx, scan.ID); err == nil {
			row.Issues = result.Issues
		}
		rows = append(rows, row)
	}

	if err := writeBacklogRows(w, rows); err != nil {
		return 0, err
	}
	a.logger.Info().Int("rows", len(rows)).Msg("AI backlog exported")
	return len(rows), nil
}

// ExportResultsCSV writes the symmetric result file for the given scans:
// the same columns, with the post-analysis issues in the JSON column.
func (a *Analyzer) ExportResultsCSV(ctx context.Context, w io.Writer, scanIDs []string) (int, error) {
	rows := make([]*BacklogRow, 0, len(scanIDs))
	for _, id := range scanIDs {
		scan, err := a.scans.GetScan(ctx, id)
		if err != nil {
			return 0, models.WrapError(models.ErrCodeScanNotFound, fmt.Sprintf("scan %s not found for result export", id), err)
		}
		row := &BacklogRow{ScanID: scan.ID, URL: scan.URL, WCAGLevel: scan.WCAGLevel}
		if result, err := a.scans.GetResult(ctx, scan.ID); err == nil {
			row.Issues = result.Issues
		}
		rows = append(rows, row)
	}

	if err := writeBacklogRows(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ImportBacklogCSV re-injects a previously exported backlog: each row
// becomes a pending AI-enabled scan with its existing issues. Rows whose
// scan id already exists are skipped. Returns the number created.
func (a *Analyzer) ImportBacklogCSV(ctx context.Context, r io.Reader) (int, error) {
	rows, err := ParseBacklogCSV(r)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, row := range rows {
		if _, err := a.scans.GetScan(ctx, row.ScanID); err == nil {
			a.logger.Debug().Str("scan_id", row.ScanID).Msg("Backlog row already known, skipping")
			continue
		}

		scan := &models.Scan{
			ID:        row.ScanID,
			URL:       row.URL,
			WCAGLevel: row.WCAGLevel,
			Status:    models.ScanStatusCompleted,
			AIEnabled: true,
			AIStatus:  models.AIStatusPending,
		}
		if err := a.scans.SaveScan(ctx, scan); err != nil {
			return created, err
		}
		result := &models.ScanResult{ScanID: row.ScanID, Issues: row.Issues}
		result.Recount()
		if err := a.scans.SaveResult(ctx, result); err != nil {
			return created, err
		}
		created++
	}

	a.logger.Info().Int("rows", len(rows)).Int("created", created).Msg("AI backlog imported")
	return created, nil
}

func writeBacklogRows(w io.Writer, rows []*BacklogRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(backlogHeader); err != nil {
		return err
	}
	for _, row := range rows {
		issues, err := json.Marshal(row.Issues)
		if err != nil {
			return fmt.Errorf("failed to encode issues for scan %s: %w", row.ScanID, err)
		}
		record := []string{row.ScanID, row.URL, string(row.WCAGLevel), string(issues)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ParseBacklogCSV reads the backlog exchange format back into rows. The
// header row is optional; levels must be A, AA or AAA.
func ParseBacklogCSV(r io.Reader) ([]*BacklogRow, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog CSV: %w", err)
	}

	var rows []*BacklogRow
	for i, record := range records {
		if i == 0 && strings.EqualFold(record[0], backlogHeader[0]) {
			continue
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("backlog CSV row %d has %d columns, want 4", i+1, len(record))
		}

		level := models.WCAGLevel(strings.ToUpper(strings.TrimSpace(record[2])))
		switch level {
		case models.WCAGLevelA, models.WCAGLevelAA, models.WCAGLevelAAA:
		default:
			return nil, fmt.Errorf("backlog CSV row %d has unknown level %q", i+1, record[2])
		}

		var issues []*models.Issue
		if raw := strings.TrimSpace(record[3]); raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &issues); err != nil {
				return nil, fmt.Errorf("backlog CSV row %d has invalid issues JSON: %w", i+1, err)
			}
		}

		rows = append(rows, &BacklogRow{
			ScanID:    strings.TrimSpace(record[0]),
			URL:       strings.TrimSpace(record[1]),
			WCAGLevel: level,
			Issues:    issues,
		})
	}
	return rows, nil
}
