package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Artifact statuses visible to polling clients.
const (
	ArtifactStatusGenerating = "generating"
	ArtifactStatusReady      = "ready"
	ArtifactStatusFailed     = "failed"
)

const artifactStatusTTL = 24 * time.Hour

// Artifact is the poll-visible state of a report generation request.
type Artifact struct {
	Status    string     `json:"status"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Processor handles generate-report jobs: build the artifact, upload it
// and publish {url, expiresAt} for the polling client.
type Processor struct {
	scans   interfaces.ScanStorage
	batches interfaces.BatchStorage
	objects interfaces.ObjectStore
	cache   interfaces.ResultCacheStorage
	service *Service
	logger  arbor.ILogger
}

// NewProcessor wires the generate-report processor.
func NewProcessor(
	scans interfaces.ScanStorage,
	batches interfaces.BatchStorage,
	objects interfaces.ObjectStore,
	cache interfaces.ResultCacheStorage,
	service *Service,
	logger arbor.ILogger,
) *Processor {
	return &Processor{
		scans:   scans,
		batches: batches,
		objects: objects,
		cache:   cache,
		service: service,
		logger:  logger,
	}
}

// ArtifactKey is the cache key a client polls for report status.
func ArtifactKey(targetID string, format models.ReportFormat) string {
	return fmt.Sprintf("report:%s:%s", targetID, format)
}

// GetArtifact returns the poll-visible artifact state, or nil when no
// generation was requested.
func (p *Processor) GetArtifact(ctx context.Context, targetID string, format models.ReportFormat) (*Artifact, error) {
	data, err := p.cache.Get(ctx, ArtifactKey(targetID, format))
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("corrupt artifact record for %s: %w", targetID, err)
	}
	return &artifact, nil
}

// Process runs one generate-report job.
func (p *Processor) Process(ctx context.Context, job *models.Job) error {
	var payload models.GenerateReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid generate-report payload: %w", err)
	}

	targetID := payload.ScanID
	if targetID == "" {
		targetID = payload.BatchID
	}
	if targetID == "" {
		return fmt.Errorf("generate-report payload names neither scan nor batch")
	}

	p.publishArtifact(ctx, targetID, payload.Format, &Artifact{Status: ArtifactStatusGenerating})

	data, contentType, err := p.build(ctx, payload)
	if err != nil {
		p.publishArtifact(ctx, targetID, payload.Format, &Artifact{Status: ArtifactStatusFailed, Error: err.Error()})
		return err
	}

	key := fmt.Sprintf("%s/%s.%s", targetID, time.Now().UTC().Format("20060102T150405Z"), payload.Format)
	stored, err := p.objects.Put(ctx, key, data, contentType)
	if err != nil {
		p.publishArtifact(ctx, targetID, payload.Format, &Artifact{Status: ArtifactStatusFailed, Error: err.Error()})
		return err
	}

	p.publishArtifact(ctx, targetID, payload.Format, &Artifact{
		Status:    ArtifactStatusReady,
		URL:       stored.URL,
		ExpiresAt: &stored.ExpiresAt,
	})

	p.logger.Info().
		Str("target_id", targetID).
		Str("format", string(payload.Format)).
		Str("key", stored.Key).
		Msg("Report artifact generated")
	return nil
}

func (p *Processor) build(ctx context.Context, payload models.GenerateReportPayload) ([]byte, string, error) {
	if payload.BatchID != "" {
		return p.buildBatch(ctx, payload.BatchID, payload.Format)
	}
	return p.buildScan(ctx, payload.ScanID, payload.Format)
}

func (p *Processor) buildScan(ctx context.Context, scanID string, format models.ReportFormat) ([]byte, string, error) {
	scan, err := p.scans.GetScan(ctx, scanID)
	if err != nil {
		return nil, "", err
	}
	result, err := p.scans.GetResult(ctx, scanID)
	if err != nil {
		return nil, "", models.WrapError(models.ErrCodeNoResults, "scan has no result", err)
	}

	switch format {
	case models.ReportFormatPDF:
		data, err := p.service.BuildScanPDF(scan, result)
		return data, "application/pdf", err
	case models.ReportFormatJSON:
		data, err := p.service.BuildScanJSON(scan, result)
		return data, "application/json", err
	case models.ReportFormatCSV:
		data, err := p.service.BuildScanCSV(scan, result)
		return data, "text/csv", err
	default:
		return nil, "", fmt.Errorf("unsupported report format: %s", format)
	}
}

func (p *Processor) buildBatch(ctx context.Context, batchID string, format models.ReportFormat) ([]byte, string, error) {
	batch, err := p.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, "", err
	}
	scans, err := p.scans.ListScansByBatch(ctx, batchID)
	if err != nil {
		return nil, "", err
	}

	results := make(map[string]*models.ScanResult, len(scans))
	for _, scan := range scans {
		if result, err := p.scans.GetResult(ctx, scan.ID); err == nil {
			results[scan.ID] = result
		}
	}

	switch format {
	case models.ReportFormatPDF:
		data, err := p.service.BuildBatchPDF(batch, scans, results)
		return data, "application/pdf", err
	case models.ReportFormatJSON:
		doc := struct {
			Batch   *models.BatchScan             `json:"batch"`
			Scans   []*models.Scan                `json:"scans"`
			Results map[string]*models.ScanResult `json:"results"`
		}{batch, scans, results}
		data, err := json.MarshalIndent(doc, "", "  ")
		return data, "application/json", err
	default:
		return nil, "", fmt.Errorf("unsupported batch report format: %s", format)
	}
}

func (p *Processor) publishArtifact(ctx context.Context, targetID string, format models.ReportFormat, artifact *Artifact) {
	data, err := json.Marshal(artifact)
	if err != nil {
		p.logger.Warn().Err(err).Str("target_id", targetID).Msg("Failed to marshal artifact status")
		return
	}
	if err := p.cache.Set(ctx, ArtifactKey(targetID, format), data, artifactStatusTTL); err != nil {
		p.logger.Warn().Err(err).Str("target_id", targetID).Msg("Failed to publish artifact status")
	}
}
