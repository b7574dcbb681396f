package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/common"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/httpclient"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/queue"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/ai"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/batch"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/discovery"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/mailer"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/reports"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/resultcache"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/scanner"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/services/usage"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/badger"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/storage/object"
)

// App owns the full dependency graph and its lifecycle. Construction
// order mirrors shutdown order in reverse.
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage interfaces.StorageManager
	Queue   *queue.Manager

	Discovery *discovery.Engine
	Usage     *usage.Service
	Scheduler *batch.Scheduler
	Reports   *reports.Processor

	browser interfaces.Browser
	janitor *batch.Janitor
}

// New builds the application: storage, browser, services, processors,
// queue bindings. Nothing is running yet; call Start.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	objects, err := object.NewStore(
		config.Storage.Objects,
		config.AppURL,
		config.Storage.ObjectURLSecret,
		logger,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	fetcher := httpclient.NewFetcher(
		logger,
		config.Discovery.UserAgent,
		config.Discovery.GlobalRatePerSec,
		config.Discovery.MaxBodySize,
	)

	usageService := usage.NewService(storageManager.UsageStorage(), logger, config.Discovery.MonthlyLimit)
	snapshots := resultcache.NewService(storageManager.ResultCacheStorage(), logger, config.Discovery.ResultCacheTTLDuration())
	discoveryEngine := discovery.NewEngine(
		storageManager.DiscoveryStorage(),
		usageService,
		fetcher,
		snapshots,
		logger,
		config.Discovery,
	)

	queueManager := queue.NewManager(storageManager.JobStorage(), logger, config.Queue)

	browser, err := scanner.NewChromeBrowser(logger, config.Scanner)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to start headless browser: %w", err)
	}

	ruleEngine := scanner.NewRuleEngine(logger)
	scanProcessor := scanner.NewProcessor(
		storageManager.ScanStorage(),
		storageManager.BatchStorage(),
		browser,
		ruleEngine,
		queueManager,
		logger,
		config.Scanner.RenderTimeoutDuration(),
	)

	reportService := reports.NewService(logger)
	reportProcessor := reports.NewProcessor(
		storageManager.ScanStorage(),
		storageManager.BatchStorage(),
		objects,
		storageManager.ResultCacheStorage(),
		reportService,
		logger,
	)

	sender := mailer.NewSMTPSender(config.Email, logger)
	mailProcessor := mailer.NewProcessor(
		storageManager.ScanStorage(),
		storageManager.BatchStorage(),
		sender,
		logger,
		config.AppURL,
		config.Email.FastScanThresholdMs,
	)

	scheduler := batch.NewScheduler(
		storageManager.BatchStorage(),
		storageManager.ScanStorage(),
		usageService,
		queueManager,
		logger,
	)
	batchReportProcessor := batch.NewReportProcessor(
		storageManager.BatchStorage(),
		storageManager.ScanStorage(),
		queueManager,
		logger,
	)
	janitor := batch.NewJanitor(
		storageManager.BatchStorage(),
		logger,
		config.Batch.StaleIdleWindowDuration(),
		config.Batch.JanitorSchedule,
	)

	queueManager.RegisterProcessor(models.QueueScanPage, scanProcessor.Process)
	queueManager.OnPermanentFailure(models.QueueScanPage, scanProcessor.OnPermanentFailure)
	queueManager.RegisterProcessor(models.QueueGenerateReport, reportProcessor.Process)
	queueManager.RegisterProcessor(models.QueueSendEmail, mailProcessor.Process)
	queueManager.OnPermanentFailure(models.QueueSendEmail, mailProcessor.OnPermanentFailure)
	queueManager.RegisterProcessor(models.QueueBatchReport, batchReportProcessor.Process)

	// AI enrichment is optional; without a key the ai-batch queue has no
	// processor and jobs wait until one is configured.
	if config.AI.APIKey != "" {
		invoker, err := ai.NewClaudeInvoker(config.AI, logger)
		if err != nil {
			browser.Close()
			storageManager.Close()
			return nil, fmt.Errorf("failed to initialize AI invoker: %w", err)
		}
		analyzer := ai.NewAnalyzer(
			storageManager.ScanStorage(),
			storageManager.CheckpointStorage(),
			storageManager.AICacheStorage(),
			invoker,
			fetcher,
			logger,
			config.AI,
		)
		queueManager.RegisterProcessor(models.QueueAIBatch, analyzer.Process)
	} else {
		logger.Warn().Msg("No Anthropic API key configured, AI analysis disabled")
	}

	return &App{
		Config:    config,
		Logger:    logger,
		Storage:   storageManager,
		Queue:     queueManager,
		Discovery: discoveryEngine,
		Usage:     usageService,
		Scheduler: scheduler,
		Reports:   reportProcessor,
		browser:   browser,
		janitor:   janitor,
	}, nil
}

// Start brings up the queue workers and the batch janitor.
func (a *App) Start(ctx context.Context) error {
	if err := a.Queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue workers: %w", err)
	}
	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start batch janitor: %w", err)
	}
	a.Logger.Info().
		Int("concurrency", a.Config.Queue.Concurrency).
		Msg("Application started")
	return nil
}

// Close shuts everything down in reverse dependency order. Queue workers
// stop first so no processor touches storage after it closes.
func (a *App) Close() {
	a.janitor.Stop()
	a.Queue.Stop()
	if err := a.browser.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Browser shutdown failed")
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage shutdown failed")
	}
	a.Logger.Info().Msg("Application stopped")
}
