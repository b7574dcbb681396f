package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// templateData feeds the notification templates.
type templateData struct {
	URL           string
	WCAGLevel     string
	TotalIssues   int
	CriticalCount int
	SeriousCount  int
	ModerateCount int
	MinorCount    int
	TotalURLs     int
	Completed     int
	Failed        int
	ErrorMessage  string
	ResultsURL    string
}

var scanCompleteHTML = template.Must(template.New("scan_complete").Parse(`
<html><body style="font-family: sans-serif; color: #222;">
<h2>Your accessibility scan is complete</h2>
<p>We finished scanning <strong>{{.URL}}</strong> against WCAG {{.WCAGLevel}}.</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><strong>Total issues</strong></td><td>{{.TotalIssues}}</td></tr>
<tr><td>Critical</td><td>{{.CriticalCount}}</td></tr>
<tr><td>Serious</td><td>{{.SeriousCount}}</td></tr>
<tr><td>Moderate</td><td>{{.ModerateCount}}</td></tr>
<tr><td>Minor</td><td>{{.MinorCount}}</td></tr>
</table>
{{if .ResultsURL}}<p><a href="{{.ResultsURL}}">View the full report</a></p>{{end}}
</body></html>`))

var scanFailedHTML = template.Must(template.New("scan_failed").Parse(`
<html><body style="font-family: sans-serif; color: #222;">
<h2>Your accessibility scan could not be completed</h2>
<p>We were unable to scan <strong>{{.URL}}</strong>.</p>
{{if .ErrorMessage}}<p>Reason: {{.ErrorMessage}}</p>{{end}}
<p>Please check that the page is publicly reachable and try again.</p>
</body></html>`))

var batchCompleteHTML = template.Must(template.New("batch_complete").Parse(`
<html><body style="font-family: sans-serif; color: #222;">
<h2>Your batch accessibility scan is complete</h2>
<p>We finished scanning <strong>{{.URL}}</strong> against WCAG {{.WCAGLevel}}.</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><strong>Pages scanned</strong></td><td>{{.TotalURLs}}</td></tr>
<tr><td>Completed</td><td>{{.Completed}}</td></tr>
<tr><td>Failed</td><td>{{.Failed}}</td></tr>
</table>
{{if .ResultsURL}}<p><a href="{{.ResultsURL}}">View the full report</a></p>{{end}}
</body></html>`))

// renderScanComplete builds the scan_complete message bodies.
func renderScanComplete(scan *models.Scan, result *models.ScanResult, resultsURL string) (subject, html, text string, err error) {
	data := templateData{
		URL:           scan.URL,
		WCAGLevel:     string(scan.WCAGLevel),
		TotalIssues:   result.TotalIssues,
		CriticalCount: result.CriticalCount,
		SeriousCount:  result.SeriousCount,
		ModerateCount: result.ModerateCount,
		MinorCount:    result.MinorCount,
		ResultsURL:    resultsURL,
	}
	var buf bytes.Buffer
	if err = scanCompleteHTML.Execute(&buf, data); err != nil {
		return "", "", "", err
	}
	subject = fmt.Sprintf("Accessibility scan complete: %d issues found", result.TotalIssues)
	text = fmt.Sprintf("Scan of %s complete. %d issues found (%d critical, %d serious). %s",
		scan.URL, result.TotalIssues, result.CriticalCount, result.SeriousCount, resultsURL)
	return subject, buf.String(), text, nil
}

// renderScanFailed builds the scan_failed message bodies.
func renderScanFailed(scan *models.Scan) (subject, html, text string, err error) {
	data := templateData{
		URL:          scan.URL,
		ErrorMessage: scan.ErrorMessage,
	}
	var buf bytes.Buffer
	if err = scanFailedHTML.Execute(&buf, data); err != nil {
		return "", "", "", err
	}
	subject = "Accessibility scan failed"
	text = fmt.Sprintf("We could not scan %s. %s", scan.URL, scan.ErrorMessage)
	return subject, buf.String(), text, nil
}

// renderBatchComplete builds the batch_complete message bodies.
func renderBatchComplete(batch *models.BatchScan, resultsURL string) (subject, html, text string, err error) {
	data := templateData{
		URL:        batch.HomepageURL,
		WCAGLevel:  string(batch.WCAGLevel),
		TotalURLs:  batch.TotalURLs,
		Completed:  batch.CompletedCount,
		Failed:     batch.FailedCount,
		ResultsURL: resultsURL,
	}
	var buf bytes.Buffer
	if err = batchCompleteHTML.Execute(&buf, data); err != nil {
		return "", "", "", err
	}
	subject = fmt.Sprintf("Batch scan complete: %d pages scanned", batch.TotalURLs)
	text = fmt.Sprintf("Batch scan of %s complete. %d pages scanned, %d completed, %d failed. %s",
		batch.HomepageURL, batch.TotalURLs, batch.CompletedCount, batch.FailedCount, resultsURL)
	return subject, buf.String(), text, nil
}
