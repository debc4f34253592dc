package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradingbot/src/cache"
	"tradingbot/src/server"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
)

var (
	PORT     = os.Getenv("SERVER_PORT")
	APP_NAME = os.Getenv("APP_NAME")
	RUN_NAME = os.Getenv("RUN_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

// checkpointStatus answers /status from the checkpoint a loop saved in Redis.
type checkpointStatus struct {
	store   *cache.CheckpointStore
	runName string
	timeout time.Duration
}

func (s *checkpointStatus) Status() server.Status {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	st := server.Status{RunName: s.runName, Mode: "checkpoint"}
	cp, err := s.store.Load(ctx, s.runName)
	if err != nil {
		if !errors.Is(err, cache.ErrNoCheckpoint) {
			logger.WithError(err).WithField("run_name", s.runName).Warn("status: load checkpoint")
		}
		return st
	}

	st.Combinations = len(cp.Streams)
	st.LastCycle = cp.SavedAt
	st.Session = &cp.Session
	st.Streak = &cp.Streak
	for _, stream := range cp.Streams {
		st.OpenPositions += len(stream.OpenPositions)
	}
	return st
}

func main() {
	_ = godotenv.Load()
	SetupLogger()
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := PORT
	if port == "" {
		port = server.GetConfig().Port
	}
	runName := RUN_NAME
	if runName == "" {
		runName = "testBot"
	}

	var src server.StatusSource
	if cfg := cache.GetConfig(); cfg.Enabled() {
		client, err := cache.New(ctx, cfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to redis")
		}
		defer func() { _ = client.Close() }()
		src = &checkpointStatus{store: cache.NewCheckpointStore(client), runName: runName, timeout: 2 * time.Second}
	}

	if err := server.StartServer(ctx, port, src); err != nil {
		logger.WithError(err).Error("Status server stopped")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
