package mailer

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

type stubSender struct {
	sent []interfaces.EmailMessage
	err  error
}

func (s *stubSender) Send(ctx context.Context, msg *interfaces.EmailMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, *msg)
	return "msg-1", nil
}

func newTestProcessor(t *testing.T, sender *stubSender) (*Processor, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	processor := NewProcessor(
		manager.ScanStorage(),
		manager.BatchStorage(),
		sender,
		logger,
		"http://localhost:8080",
		30000,
	)
	return processor, manager
}

func seedCompletedScan(t *testing.T, manager interfaces.StorageManager, id string, durationMs int64, email string) *models.Scan {
	t.Helper()
	ctx := context.Background()
	scan := &models.Scan{
		ID:         id,
		URL:        "https://example.com",
		WCAGLevel:  models.WCAGLevelAA,
		Status:     models.ScanStatusCompleted,
		DurationMs: durationMs,
		Email:      &email,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, manager.ScanStorage().SaveScan(ctx, scan))
	require.NoError(t, manager.ScanStorage().SaveResult(ctx, &models.ScanResult{
		ScanID:      id,
		TotalIssues: 3,
	}))
	return scan
}

func emailJob(t *testing.T, payload models.SendEmailPayload) *models.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.Job{ID: "job-1", QueueName: models.QueueSendEmail, Payload: data}
}

func TestProcess_ScanCompleteSendsAndScrubs(t *testing.T) {
	sender := &stubSender{}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	seedCompletedScan(t, manager, "scn_1", 45000, "user@example.com")

	job := emailJob(t, models.SendEmailPayload{
		ScanID: "scn_1",
		Email:  "user@example.com",
		Type:   models.EmailTypeScanComplete,
	})
	require.NoError(t, processor.Process(ctx, job))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "user@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "3 issues")

	scan, err := manager.ScanStorage().GetScan(ctx, "scn_1")
	require.NoError(t, err)
	assert.Nil(t, scan.Email, "address must be scrubbed after the send")
}

func TestProcess_FastScanSuppressedButStillScrubbed(t *testing.T) {
	sender := &stubSender{}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	seedCompletedScan(t, manager, "scn_fast", 12000, "user@example.com")

	job := emailJob(t, models.SendEmailPayload{
		ScanID: "scn_fast",
		Email:  "user@example.com",
		Type:   models.EmailTypeScanComplete,
	})
	require.NoError(t, processor.Process(ctx, job))

	assert.Empty(t, sender.sent, "scans under the threshold get no email")

	scan, err := manager.ScanStorage().GetScan(ctx, "scn_fast")
	require.NoError(t, err)
	assert.Nil(t, scan.Email, "address is scrubbed even when the send is suppressed")
}

func TestProcess_MissingEmailIsBenign(t *testing.T) {
	sender := &stubSender{}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	scan := seedCompletedScan(t, manager, "scn_dup", 45000, "user@example.com")
	scan.Email = nil
	require.NoError(t, manager.ScanStorage().SaveScan(ctx, scan))

	job := emailJob(t, models.SendEmailPayload{
		ScanID: "scn_dup",
		Email:  "user@example.com",
		Type:   models.EmailTypeScanComplete,
	})
	require.NoError(t, processor.Process(ctx, job), "redelivery after a scrub is a no-op")
	assert.Empty(t, sender.sent)
}

func TestProcess_SendFailureIsRetryable(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp: connection refused")}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	seedCompletedScan(t, manager, "scn_err", 45000, "user@example.com")

	job := emailJob(t, models.SendEmailPayload{
		ScanID: "scn_err",
		Email:  "user@example.com",
		Type:   models.EmailTypeScanComplete,
	})
	err := processor.Process(ctx, job)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeSendFailed, models.CodeOf(err))

	// The address survives for the retry.
	scan, getErr := manager.ScanStorage().GetScan(ctx, "scn_err")
	require.NoError(t, getErr)
	assert.NotNil(t, scan.Email)
}

func TestOnPermanentFailure_ScrubsAddress(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp: rejected")}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	seedCompletedScan(t, manager, "scn_dead", 45000, "user@example.com")

	job := emailJob(t, models.SendEmailPayload{
		ScanID: "scn_dead",
		Email:  "user@example.com",
		Type:   models.EmailTypeScanComplete,
	})
	processor.OnPermanentFailure(ctx, job, errors.New("smtp: rejected"))

	scan, err := manager.ScanStorage().GetScan(ctx, "scn_dead")
	require.NoError(t, err)
	assert.Nil(t, scan.Email, "GDPR scrub applies after exhausted retries")
}

func TestProcess_BatchComplete(t *testing.T) {
	sender := &stubSender{}
	processor, manager := newTestProcessor(t, sender)
	ctx := context.Background()

	email := "owner@example.com"
	batch := &models.BatchScan{
		ID:             "bat_1",
		HomepageURL:    "https://example.com",
		WCAGLevel:      models.WCAGLevelAA,
		Status:         models.BatchStatusCompleted,
		TotalURLs:      5,
		CompletedCount: 4,
		FailedCount:    1,
		Email:          &email,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, manager.BatchStorage().SaveBatch(ctx, batch))

	job := emailJob(t, models.SendEmailPayload{
		BatchID: "bat_1",
		Email:   email,
		Type:    models.EmailTypeBatchComplete,
	})
	require.NoError(t, processor.Process(ctx, job))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, email, sender.sent[0].To)

	stored, err := manager.BatchStorage().GetBatch(ctx, "bat_1")
	require.NoError(t, err)
	assert.Nil(t, stored.Email)
}
