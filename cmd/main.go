package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/applyflow/applyflow/internal/bot"
	"github.com/applyflow/applyflow/internal/clients/gemini"
	"github.com/applyflow/applyflow/internal/clients/greenhouse"
	"github.com/applyflow/applyflow/internal/config"
	"github.com/applyflow/applyflow/internal/knowledge"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	"github.com/applyflow/applyflow/internal/queue"
	"github.com/applyflow/applyflow/internal/repositories"
	"github.com/applyflow/applyflow/internal/services"
	"github.com/applyflow/applyflow/internal/stages"
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

func registerStages(ctx context.Context, cfg *config.Config, broker *queue.Broker,
	dbContext *repositories.DbContext, bus EventBus.Bus) {

	aiClient, err := gemini.NewClient(ctx, cfg.AI.Key, cfg.AI.FastModel, cfg.AI.DeepModel)
	if err != nil {
		log.Fatalf("can't create AI client: %v", err)
	}
	if cfg.AI.MaxRequestsPerMinute > 0 {
		aiClient.SetMinuteRateLimit(cfg.AI.MaxRequestsPerMinute)
	}
	if cfg.AI.MaxRequestsPerDay > 0 {
		aiClient.SetDayRateLimit(cfg.AI.MaxRequestsPerDay)
	}

	boardClient := greenhouse.NewClient()
	boardClient.SetRateLimit(cfg.Sources.MaxRequestsPerSecond)

	var sources []stages.PostingSource
	for _, board := range cfg.Sources.Boards {
		sources = append(sources, greenhouse.NewBoard(boardClient, board))
	}

	postings := repositories.NewPostingsRepository(dbContext.DB)
	followUps := repositories.NewFollowUpsRepository(dbContext.DB)
	resumes := repositories.NewResumesRepository(dbContext.DB)
	applications := repositories.NewApplicationsRepository(dbContext.DB)
	provider := knowledge.NewProvider(cfg.Knowledge.Dir)

	scout := stages.NewScout(sources, aiClient, postings, broker)
	normalize := stages.NewNormalize(postings, aiClient, broker)
	fitScore := stages.NewFitScore(postings, provider, aiClient, broker)
	materials := stages.NewMaterials(postings, resumes, applications, provider, aiClient, broker)
	compliance := stages.NewCompliance(postings, followUps, provider, aiClient, bus)

	register := func(stage stages.Stage, concurrency int, handler queue.Handler) {
		if err := broker.Register(stage.Queue(), concurrency, handler); err != nil {
			log.Fatalf("can't register %v worker: %v", stage, err)
		}
	}
	register(stages.StageScout, cfg.Pipeline.ScoutConcurrency, scout.Handle)
	register(stages.StageNormalize, cfg.Pipeline.NormalizeConcurrency, normalize.Handle)
	register(stages.StageFitScore, cfg.Pipeline.FitScoreConcurrency, fitScore.Handle)
	register(stages.StageMaterials, cfg.Pipeline.MaterialsConcurrency, materials.Handle)
	register(stages.StageCompliance, cfg.Pipeline.ComplianceConcurrency, compliance.Handle)
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.Pipeline.MetricsAddress)

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	bus := EventBus.New()
	tasks := repositories.NewTasksRepository(dbContext.DB)
	broker := queue.NewBroker(tasks)

	registerStages(ctx, cfg, broker, dbContext, bus)

	scheduler, err := services.NewScheduler(broker, cfg.Pipeline.ScoutInterval)
	if err != nil {
		log.Fatalf("can't create scheduler: %v", err)
	}
	defer scheduler.Stop()

	janitor, err := services.NewJanitor(
		repositories.NewPostingsRepository(dbContext.DB), tasks,
		cfg.Pipeline.PostingExpirationDays, cfg.Pipeline.TaskRetentionDays)
	if err != nil {
		log.Fatalf("can't create janitor: %v", err)
	}
	defer janitor.Stop()

	var notifier *bot.Notifier
	if cfg.Notifier.TgToken != "" {
		notifier, err = bot.NewNotifier(cfg.Notifier.TgToken, cfg.Notifier.TgChatID, bus, broker)
		if err != nil {
			log.Fatalf("can't create notifier: %v", err)
		}
		go notifier.Run()
	}

	go func() {
		if err := broker.Run(ctx); err != nil {
			log.Fatalf("broker stopped: %v", err)
		}
	}()

	scheduler.Start()

	<-ctx.Done()

	log.Info("Shutting down services...")
	if notifier != nil {
		notifier.Stop()
	}
	log.Info("Services stopped.")
}
