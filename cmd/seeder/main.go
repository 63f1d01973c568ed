// cmd/seeder/main.go
//
// Seeds the memory log with baseline timing insights for local development
// so the schedule generator has history to work from on a fresh install.
package main

import (
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/config"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/db"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

type seedOutcome struct {
	segment     string
	contentType string
	weekday     time.Weekday
	hour        int
	open        float64
	click       float64
	conversion  float64
	samples     int
}

var baseline = []seedOutcome{
	{"premium_users", "email", time.Tuesday, 10, 0.34, 0.08, 0.031, 1200},
	{"premium_users", "email", time.Thursday, 14, 0.29, 0.06, 0.024, 800},
	{"premium_users", "push", time.Wednesday, 9, 0.22, 0.05, 0.018, 600},
	{"new_signups", "email", time.Monday, 9, 0.41, 0.09, 0.022, 1500},
	{"new_signups", "email", time.Saturday, 11, 0.26, 0.04, 0.012, 400},
	{"lapsed_customers", "email", time.Sunday, 18, 0.18, 0.03, 0.009, 900},
	{"lapsed_customers", "sms", time.Friday, 12, 0.52, 0.11, 0.015, 300},
}

func main() {
	cfg := config.MustLoad()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer conn.Close()
	memory := &repository.PostgresMemoryStore{DB: conn}

	kb := knowledge.New(repository.NewInMemoryInsightRepository(), logger)

	// Anchor observations on the most recent past occurrence of each
	// weekday/hour so seeded insights start fresh.
	now := time.Now()
	for _, s := range baseline {
		observed := lastOccurrence(now, s.weekday, s.hour)
		ins, err := kb.RecordOutcome(s.segment, s.contentType, observed, model.PerformanceMetrics{
			OpenRate:       s.open,
			ClickRate:      s.click,
			ConversionRate: s.conversion,
			Confidence:     0.85,
			SampleSize:     s.samples,
		})
		if err != nil {
			logger.Fatal("failed to seed insight", zap.Error(err))
		}
		if err := memory.Store("timing_insights", ins.ID, ins, []string{"seed", s.segment}); err != nil {
			logger.Fatal("failed to persist seed insight", zap.Error(err))
		}
		fmt.Printf("Seeded: %s/%s %s %02d:00 (%d samples)\n",
			s.segment, s.contentType, s.weekday, s.hour, s.samples)
	}

	fmt.Println("Knowledge base seeding completed successfully!")
}

func lastOccurrence(now time.Time, day time.Weekday, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	daysBack := (int(now.Weekday()) - int(day) + 7) % 7
	t = t.AddDate(0, 0, -daysBack)
	if t.After(now) {
		t = t.AddDate(0, 0, -7)
	}
	return t
}
