package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Service renders scan and batch results into export artifacts.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// BuildScanPDF renders a single-scan report.
func (s *Service) BuildScanPDF(scan *models.Scan, result *models.ScanResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Accessibility Scan Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	writeKeyValue(pdf, "URL", scan.URL)
	writeKeyValue(pdf, "WCAG level", string(scan.WCAGLevel))
	writeKeyValue(pdf, "Status", string(scan.Status))
	writeKeyValue(pdf, "Scanned at", formatTime(scan.CompletedAt))
	writeKeyValue(pdf, "Duration", fmt.Sprintf("%d ms", scan.DurationMs))
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	writeKeyValue(pdf, "Total issues", fmt.Sprintf("%d", result.TotalIssues))
	writeKeyValue(pdf, "Critical", fmt.Sprintf("%d", result.CriticalCount))
	writeKeyValue(pdf, "Serious", fmt.Sprintf("%d", result.SeriousCount))
	writeKeyValue(pdf, "Moderate", fmt.Sprintf("%d", result.ModerateCount))
	writeKeyValue(pdf, "Minor", fmt.Sprintf("%d", result.MinorCount))
	writeKeyValue(pdf, "Passed checks", fmt.Sprintf("%d", result.PassedChecks))
	pdf.Ln(4)

	if len(result.Issues) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Issues")
		pdf.Ln(10)

		for i, issue := range result.Issues {
			pdf.SetFont("Arial", "B", 10)
			pdf.MultiCell(0, 6, fmt.Sprintf("%d. [%s] %s", i+1, issue.Impact, issue.Description), "", "L", false)
			pdf.SetFont("Arial", "", 9)
			if len(issue.WCAGCriteria) > 0 {
				pdf.MultiCell(0, 5, "WCAG: "+strings.Join(issue.WCAGCriteria, ", "), "", "L", false)
			}
			if issue.CSSSelector != "" {
				pdf.SetFont("Courier", "", 8)
				pdf.MultiCell(0, 5, issue.CSSSelector, "", "L", false)
				pdf.SetFont("Arial", "", 9)
			}
			if issue.HelpText != "" {
				pdf.MultiCell(0, 5, issue.HelpText, "", "L", false)
			}
			if issue.AIFixSuggestion != "" {
				pdf.MultiCell(0, 5, "Suggested fix: "+issue.AIFixSuggestion, "", "L", false)
			}
			pdf.Ln(3)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Str("scan_id", scan.ID).Int("pdf_size", buf.Len()).Msg("Scan PDF generated")
	return buf.Bytes(), nil
}

// BuildBatchPDF renders a batch summary report over the child scans.
func (s *Service) BuildBatchPDF(batch *models.BatchScan, scans []*models.Scan, results map[string]*models.ScanResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Batch Accessibility Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	writeKeyValue(pdf, "Homepage", batch.HomepageURL)
	writeKeyValue(pdf, "WCAG level", string(batch.WCAGLevel))
	writeKeyValue(pdf, "Pages scanned", fmt.Sprintf("%d", batch.TotalURLs))
	writeKeyValue(pdf, "Completed", fmt.Sprintf("%d", batch.CompletedCount))
	writeKeyValue(pdf, "Failed", fmt.Sprintf("%d", batch.FailedCount))
	pdf.Ln(4)

	totalIssues := 0
	for _, r := range results {
		totalIssues += r.TotalIssues
	}
	writeKeyValue(pdf, "Total issues", fmt.Sprintf("%d", totalIssues))
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Pages")
	pdf.Ln(10)

	for _, scan := range scans {
		pdf.SetFont("Arial", "B", 9)
		pdf.MultiCell(0, 5, scan.URL, "", "L", false)
		pdf.SetFont("Arial", "", 9)
		line := fmt.Sprintf("Status: %s", scan.Status)
		if result, ok := results[scan.ID]; ok {
			line += fmt.Sprintf(" | Issues: %d (critical %d, serious %d)",
				result.TotalIssues, result.CriticalCount, result.SeriousCount)
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Str("batch_id", batch.ID).Int("pdf_size", buf.Len()).Msg("Batch PDF generated")
	return buf.Bytes(), nil
}

// BuildScanJSON renders the scan and its result as a JSON document.
func (s *Service) BuildScanJSON(scan *models.Scan, result *models.ScanResult) ([]byte, error) {
	doc := struct {
		Scan   *models.Scan       `json:"scan"`
		Result *models.ScanResult `json:"result"`
	}{Scan: scan, Result: result}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan JSON: %w", err)
	}
	return data, nil
}

// BuildScanCSV renders the issue list as CSV rows.
func (s *Service) BuildScanCSV(scan *models.Scan, result *models.ScanResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"url", "rule_id", "impact", "wcag_criteria", "description", "css_selector", "help_url"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, issue := range result.Issues {
		row := []string{
			scan.URL,
			issue.RuleID,
			string(issue.Impact),
			strings.Join(issue.WCAGCriteria, ";"),
			issue.Description,
			issue.CSSSelector,
			issue.HelpURL,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeKeyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(40, 6, key)
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, value, "", "L", false)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
