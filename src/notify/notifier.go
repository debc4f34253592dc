package notify

import (
	"context"
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every sender. Only events in the
// allowed set pass; an empty set allows all of them.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     *logger.Entry
}

func NewNotifier(senders []Sender, events []string) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		log:     logger.WithField("component", "notifier"),
	}
}

// FromConfig always logs and adds a webhook sender when a URL is set.
func FromConfig(cfg Config) *Notifier {
	var senders []Sender
	if cfg.LogAllMessages {
		senders = append(senders, NewLogSender())
	}
	if cfg.WebhookURL != "" {
		senders = append(senders, NewWebhookSender(cfg))
	}
	return NewNotifier(senders, cfg.Events)
}

func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.log.WithField("event", event).Debug("event filtered out")
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch keeps going after a sender fails and reports every failure.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.log.WithField("sender", s.Name()).WithError(err).Error("sender failed")
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.log.WithField("sender", s.Name()).WithField("title", title).Debug("notification sent")
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
