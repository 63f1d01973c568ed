// cmd/worker/main.go
//
// Outcome worker: consumes terminal campaign outcomes from RabbitMQ and
// feeds them into a timing knowledge base, persisting derived insights into
// the shared memory log so other processes can learn from them.
package main

import (
	"encoding/json"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/config"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/coordinator"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/db"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/queue"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

func main() {
	cfg := config.MustLoad()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var memory repository.MemoryStore
	if conn, err := db.Open(cfg.Database); err != nil {
		logger.Warn("postgres unavailable, insights stay process-local", zap.Error(err))
		memory = repository.NewInMemoryMemoryStore()
	} else {
		defer conn.Close()
		memory = &repository.PostgresMemoryStore{DB: conn}
	}

	bus, err := queue.DialAMQP(cfg.Queue.AMQPURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer bus.Close()

	kb := knowledge.New(repository.NewInMemoryInsightRepository(), logger,
		knowledge.WithDecay(cfg.Knowledge.DecayFactor, cfg.Knowledge.ConfidenceFloor, cfg.Knowledge.DecayInterval))

	err = bus.Subscribe(coordinator.OutcomeTopic, func(payload any) error {
		raw, ok := payload.([]byte)
		if !ok {
			logger.Warn("unexpected payload type, dropping")
			return nil
		}
		var event model.OutcomeEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			logger.Warn("invalid outcome event, dropping", zap.Error(err))
			return nil
		}
		if event.Status != model.ExecutionCompleted || event.Segment == "" {
			return nil
		}

		ins, err := kb.RecordOutcome(event.Segment, event.ContentType, event.ObservedTime, event.Performance)
		if err != nil {
			return err
		}
		// Share the merged insight through the durable log.
		if err := memory.Store("timing_insights", ins.ID, ins, []string{"worker", event.Segment}); err != nil {
			logger.Warn("failed to persist insight", zap.Error(err))
		}
		logger.Info("outcome recorded",
			zap.String("execution_id", event.ExecutionID),
			zap.String("segment", event.Segment),
			zap.Int("sample_size", ins.Performance.SampleSize))
		return nil
	})
	if err != nil {
		logger.Fatal("failed to subscribe", zap.Error(err))
	}

	runner := cron.New()
	runner.AddFunc("@every 24h", func() {
		if pruned, err := kb.DecayAndPrune(); err != nil {
			logger.Error("decay cycle failed", zap.Error(err))
		} else if pruned > 0 {
			logger.Info("insights pruned", zap.Int("count", pruned))
		}
	})
	runner.Start()
	defer runner.Stop()

	logger.Info("worker running, waiting for outcomes")
	select {}
}
