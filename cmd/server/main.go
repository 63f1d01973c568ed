// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/config"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/controller"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/coordinator"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/db"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/queue"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/replay"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

func main() {
	cfg := config.MustLoad()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	clk := clock.Real{}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Durable memory log: Postgres when reachable, in-memory otherwise.
	var memory repository.MemoryStore
	if conn, err := db.Open(cfg.Database); err != nil {
		logger.Warn("postgres unavailable, using in-memory audit log", zap.Error(err))
		memory = repository.NewInMemoryMemoryStore()
	} else {
		defer conn.Close()
		memory = &repository.PostgresMemoryStore{DB: conn}
		logger.Info("connected to postgres")
	}

	// Outcome bus: RabbitMQ when reachable, in-memory otherwise.
	var bus queue.Queue
	if amqpQueue, err := queue.DialAMQP(cfg.Queue.AMQPURL, logger); err != nil {
		logger.Warn("rabbitmq unavailable, using in-memory queue", zap.Error(err))
		bus = queue.NewInMemoryQueue(logger)
	} else {
		defer amqpQueue.Close()
		bus = amqpQueue
		logger.Info("connected to rabbitmq")
	}

	insightRepo := repository.NewInMemoryInsightRepository()
	scheduleRepo := repository.NewInMemoryScheduleRepository()
	executionRepo := repository.NewInMemoryExecutionRepository()
	replayRepo := repository.NewInMemoryReplayRepository()

	kb := knowledge.New(insightRepo, logger,
		knowledge.WithClock(clk),
		knowledge.WithDecay(cfg.Knowledge.DecayFactor, cfg.Knowledge.ConfidenceFloor, cfg.Knowledge.DecayInterval))

	generator := scheduler.NewGenerator(kb, memory, clk, logger)

	coord := coordinator.New(
		executionRepo,
		scheduleRepo,
		generator,
		coordinator.NewSimulatedStepExecutor(rand.NewSource(time.Now().UnixNano()), 0.05),
		bus,
		memory,
		clk,
		logger,
		coordinator.Config{
			MaxConcurrent:   cfg.Coordinator.MaxConcurrent,
			StuckAfter:      cfg.Coordinator.StuckAfter,
			EngagementFloor: cfg.Coordinator.EngagementFloor,
			BounceCeiling:   cfg.Coordinator.BounceCeiling,
			MinHealthSample: cfg.Coordinator.MinHealthSample,
		})

	engine := replay.New(replay.Deps{
		Replays:   replayRepo,
		Patterns:  replay.NewInMemoryPatternStore(),
		Plans:     replay.SpecPlanGenerator{},
		Content:   &replay.SimulatedContentGenerator{Rand: rng},
		Brand:     &replay.SimulatedBrandChecker{Rand: rng},
		Generator: generator,
		Coord:     coord,
		Knowledge: kb,
		Memory:    memory,
		Clock:     clk,
		Rand:      rng,
		Logger:    logger,
	}, replay.Config{
		ConfidenceThreshold: cfg.Replay.ConfidenceThreshold,
		MaxConcurrent:       cfg.Replay.MaxConcurrent,
		MinTimeBetween:      cfg.Replay.MinTimeBetween,
		FreshnessWindow:     cfg.Replay.FreshnessWindow,
		HardTimeout:         cfg.Replay.HardTimeout,
		CollaboratorTimeout: cfg.Replay.CollaboratorTimeout,
		SimulationMode:      cfg.Replay.SimulationMode,
	})

	// Close the learning loop in-process as well: outcomes published on the
	// bus flow straight back into the knowledge base.
	if err := bus.Subscribe(coordinator.OutcomeTopic, outcomeHandler(kb, logger)); err != nil {
		logger.Warn("failed to subscribe to outcome topic", zap.Error(err))
	}

	// Periodic ticks. Components stay tick-driven and single-threaded; cron
	// only supplies the cadence.
	runner := cron.New()
	runner.AddFunc("@every 30s", coord.Tick)
	runner.AddFunc("@every 30s", coord.ProcessDue)
	runner.AddFunc("@hourly", func() { engine.RunCycle(context.Background()) })
	runner.AddFunc("@every 24h", func() {
		if _, err := kb.DecayAndPrune(); err != nil {
			logger.Error("decay cycle failed", zap.Error(err))
		}
	})
	runner.Start()
	defer runner.Stop()

	campaignController := &controller.CampaignController{
		Coordinator: coord,
		Generator:   generator,
	}
	replayController := &controller.ReplayController{
		Engine: engine,
		Memory: memory,
	}

	r := chi.NewRouter()

	r.Post("/schedules", campaignController.CreateSchedule)
	r.Get("/schedules", campaignController.ListSchedules)
	r.Delete("/schedules/{id}", campaignController.CancelSchedule)
	r.Post("/schedules/generate", campaignController.GenerateSchedule)
	r.Post("/executions", campaignController.ExecuteCampaign)
	r.Get("/executions/{id}", campaignController.GetExecution)
	r.Post("/executions/{id}/cancel", campaignController.CancelExecution)
	r.Get("/status", campaignController.GetStatus)
	r.Post("/replays/scan", replayController.TriggerScan)
	r.Get("/replays/{id}", replayController.GetReplay)
	r.Get("/replays/analytics", replayController.GetAnalytics)
	r.Get("/audit/{namespace}", replayController.GetAuditLog)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Info("server running", zap.String("addr", cfg.Server.Address()))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// outcomeHandler converts bus payloads into knowledge-base observations.
// AMQP delivers raw JSON bytes; the in-memory queue delivers the event
// value directly.
func outcomeHandler(kb *knowledge.TimingKnowledgeBase, logger *zap.Logger) func(payload any) error {
	return func(payload any) error {
		var event model.OutcomeEvent
		switch p := payload.(type) {
		case model.OutcomeEvent:
			event = p
		case []byte:
			if err := json.Unmarshal(p, &event); err != nil {
				logger.Warn("invalid outcome payload", zap.Error(err))
				return nil
			}
		default:
			logger.Warn("unexpected outcome payload type")
			return nil
		}

		if event.Status != model.ExecutionCompleted || event.Segment == "" {
			return nil
		}
		_, err := kb.RecordOutcome(event.Segment, event.ContentType, event.ObservedTime, event.Performance)
		return err
	}
}
