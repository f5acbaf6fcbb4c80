package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"quizwrap/internal/config"
	"quizwrap/internal/logger"
	"quizwrap/internal/model"
	"quizwrap/internal/repository"
	"quizwrap/internal/service"
)

// demo results for trying the instructor page against MongoDB
var demo = []struct {
	name       string
	rollNumber string
	tabChanges int
}{
	{"Asha Verma", "R1", 0},
	{"Ravi Kumar", "R2", 2},
	{"Meera Nair", "R3", 0},
	{"Arjun Singh", "R4", 5},
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Storage.MongoURI))
	if err != nil {
		logger.Log.Fatal("failed to connect to mongo", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	repo := repository.NewRecordRepo(client.Database(cfg.Storage.MongoDB))

	now := time.Now()
	for i, d := range demo {
		startedAt := now.Add(-time.Duration(len(demo)-i) * 15 * time.Minute)
		rec := &model.SessionRecord{
			ID:             uuid.New().String(),
			Identity:       model.Identity{Name: d.name, RollNumber: d.rollNumber},
			FocusLossCount: d.tabChanges,
			StartedAt:      startedAt,
			RecordedAt:     startedAt.Add(10 * time.Minute),
			OutcomeLabel:   model.OutcomeLabel(d.tabChanges),
		}
		if err := repo.Append(ctx, rec); err != nil {
			logger.Log.Fatal("failed to seed record", zap.String("rollNumber", d.rollNumber), zap.Error(err))
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		logger.Log.Fatal("failed to list records", zap.Error(err))
	}
	sum := service.Summarize(records)
	logger.Log.Info("seeded records",
		zap.Int("inserted", len(demo)),
		zap.Int("total", sum.Count),
		zap.Float64("averageFocusLoss", sum.AverageFocusLoss))
}
