package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tradingbot/src/engine"
	"tradingbot/src/streak"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// Status is the body of GET /status.
type Status struct {
	RunName       string               `json:"run_name"`
	Mode          string               `json:"mode"`
	Combinations  int                  `json:"combinations"`
	OpenPositions int                  `json:"open_positions"`
	LastCycle     time.Time            `json:"last_cycle"`
	Session       *engine.SessionState `json:"session,omitempty"`
	Streak        *streak.State        `json:"streak,omitempty"`
}

// StatusSource reports the running loop's state.
type StatusSource interface {
	Status() Status
}

func NewRouter(src StatusSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			http.Error(w, "no run attached", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Status()); err != nil {
			logger.WithError(err).Error("/status encode error")
		}
	})

	return r
}

// StartServer serves until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, port string, src StatusSource) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(src),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
