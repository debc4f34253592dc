package notify

import (
	"context"

	logger "github.com/sirupsen/logrus"
)

// LogSender writes notifications to the application log.
type LogSender struct {
	log *logger.Entry
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.WithField("component", "notification")}
}

func (s *LogSender) Send(_ context.Context, title, message string) error {
	s.log.WithField("title", title).Info(message)
	return nil
}

func (s *LogSender) Name() string { return "log" }
