// Package notify forwards activity to chat channels (Telegram, Discord).
// Items are filtered by severity so operators only hear about the outcomes
// they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Message is one notification.
type Message struct {
	Title    string
	Body     string
	Severity domain.Severity
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers msg.
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches activity to one or more Senders. It is registered as an
// orchestrator activity sink.
type Notifier struct {
	senders    []Sender
	severities map[domain.Severity]bool
	logger     *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders. Only
// items whose severity appears in severities are forwarded; an empty list
// forwards everything.
func NewNotifier(senders []Sender, severities []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.Severity]bool, len(severities))
	for _, s := range severities {
		allowed[domain.Severity(strings.ToLower(strings.TrimSpace(s)))] = true
	}
	return &Notifier{
		senders:    senders,
		severities: allowed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Name implements domain.ActivitySink.
func (n *Notifier) Name() string { return "notify" }

// Record implements domain.ActivitySink.
func (n *Notifier) Record(ctx context.Context, item domain.ActivityItem) error {
	if len(n.severities) > 0 && !n.severities[item.Severity] {
		n.logger.DebugContext(ctx, "activity filtered out",
			slog.String("title", item.Title),
			slog.String("severity", string(item.Severity)),
		)
		return nil
	}
	return n.dispatch(ctx, Message{Title: item.Title, Body: item.Detail, Severity: item.Severity})
}

// dispatch sends msg to every sender. A failing sender does not stop
// delivery to the rest; failures are combined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Compile-time interface check.
var _ domain.ActivitySink = (*Notifier)(nil)
