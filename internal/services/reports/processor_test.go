package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	badgerstore "github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/badger"
)

type stubObjectStore struct {
	objects map[string][]byte
	err     error
}

func (s *stubObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (*interfaces.StoredObject, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return &interfaces.StoredObject{
		Key:       key,
		URL:       "http://localhost:8080/artifacts/" + key,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}, nil
}

func (s *stubObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

var _ interfaces.ObjectStore = (*stubObjectStore)(nil)

func newTestProcessor(t *testing.T, objects *stubObjectStore) (*Processor, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	processor := NewProcessor(
		manager.ScanStorage(),
		manager.BatchStorage(),
		objects,
		manager.ResultCacheStorage(),
		NewService(logger),
		logger,
	)
	return processor, manager
}

func seedScanWithResult(t *testing.T, manager interfaces.StorageManager, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, manager.ScanStorage().SaveScan(ctx, &models.Scan{
		ID:        id,
		URL:       "https://example.com",
		WCAGLevel: models.WCAGLevelAA,
		Status:    models.ScanStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, manager.ScanStorage().SaveResult(ctx, &models.ScanResult{
		ScanID: id,
		Issues: []*models.Issue{
			{RuleID: "image-alt", Impact: models.ImpactCritical, WCAGCriteria: []string{"1.1.1"}, Description: "Images must have alternate text"},
		},
		TotalIssues:   1,
		CriticalCount: 1,
		PassedChecks:  10,
	}))
}

func reportJob(t *testing.T, payload models.GenerateReportPayload) *models.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.Job{ID: "job-1", QueueName: models.QueueGenerateReport, Payload: data}
}

func TestProcess_ScanPDFPublishesReadyArtifact(t *testing.T) {
	objects := &stubObjectStore{}
	processor, manager := newTestProcessor(t, objects)
	ctx := context.Background()

	seedScanWithResult(t, manager, "scn_1")

	job := reportJob(t, models.GenerateReportPayload{ScanID: "scn_1", Format: models.ReportFormatPDF})
	require.NoError(t, processor.Process(ctx, job))

	artifact, err := processor.GetArtifact(ctx, "scn_1", models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusReady, artifact.Status)
	assert.Contains(t, artifact.URL, "scn_1/")
	require.NotNil(t, artifact.ExpiresAt)
	assert.True(t, artifact.ExpiresAt.After(time.Now()))

	require.Len(t, objects.objects, 1)
	for _, data := range objects.objects {
		assert.True(t, len(data) > 4 && string(data[:4]) == "%PDF", "artifact must be a PDF document")
	}
}

func TestProcess_ScanJSONAndCSV(t *testing.T) {
	objects := &stubObjectStore{}
	processor, manager := newTestProcessor(t, objects)
	ctx := context.Background()

	seedScanWithResult(t, manager, "scn_2")

	require.NoError(t, processor.Process(ctx, reportJob(t, models.GenerateReportPayload{ScanID: "scn_2", Format: models.ReportFormatJSON})))
	require.NoError(t, processor.Process(ctx, reportJob(t, models.GenerateReportPayload{ScanID: "scn_2", Format: models.ReportFormatCSV})))

	jsonArtifact, err := processor.GetArtifact(ctx, "scn_2", models.ReportFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusReady, jsonArtifact.Status)

	csvArtifact, err := processor.GetArtifact(ctx, "scn_2", models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusReady, csvArtifact.Status)
}

func TestProcess_MissingScanPublishesFailure(t *testing.T) {
	processor, _ := newTestProcessor(t, &stubObjectStore{})
	ctx := context.Background()

	job := reportJob(t, models.GenerateReportPayload{ScanID: "scn_absent", Format: models.ReportFormatPDF})
	require.Error(t, processor.Process(ctx, job))

	artifact, err := processor.GetArtifact(ctx, "scn_absent", models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusFailed, artifact.Status)
	assert.NotEmpty(t, artifact.Error)
}

func TestProcess_UploadFailureIsRetryable(t *testing.T) {
	processor, manager := newTestProcessor(t, &stubObjectStore{err: errors.New("disk full")})
	ctx := context.Background()

	seedScanWithResult(t, manager, "scn_3")

	job := reportJob(t, models.GenerateReportPayload{ScanID: "scn_3", Format: models.ReportFormatPDF})
	require.Error(t, processor.Process(ctx, job))

	artifact, err := processor.GetArtifact(ctx, "scn_3", models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusFailed, artifact.Status)
}

func TestProcess_BatchReport(t *testing.T) {
	objects := &stubObjectStore{}
	processor, manager := newTestProcessor(t, objects)
	ctx := context.Background()

	require.NoError(t, manager.BatchStorage().SaveBatch(ctx, &models.BatchScan{
		ID:             "bat_1",
		HomepageURL:    "https://example.com",
		WCAGLevel:      models.WCAGLevelAA,
		Status:         models.BatchStatusCompleted,
		TotalURLs:      2,
		CompletedCount: 2,
		CreatedAt:      time.Now().UTC(),
	}))
	for _, id := range []string{"scn_b1", "scn_b2"} {
		seedScanWithResult(t, manager, id)
		scan, err := manager.ScanStorage().GetScan(ctx, id)
		require.NoError(t, err)
		scan.BatchID = "bat_1"
		require.NoError(t, manager.ScanStorage().SaveScan(ctx, scan))
	}

	job := reportJob(t, models.GenerateReportPayload{BatchID: "bat_1", Format: models.ReportFormatPDF})
	require.NoError(t, processor.Process(ctx, job))

	artifact, err := processor.GetArtifact(ctx, "bat_1", models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, ArtifactStatusReady, artifact.Status)
}

func TestGetArtifact_MissIsCacheMiss(t *testing.T) {
	processor, _ := newTestProcessor(t, &stubObjectStore{})
	_, err := processor.GetArtifact(context.Background(), "scn_none", models.ReportFormatPDF)
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}
