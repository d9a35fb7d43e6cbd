// Package notify publishes an event for every committed batch so other
// processes can follow index updates.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hugin/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/resilience"
)

// CommitEvent is the JSON payload published per namespace of a batch.
type CommitEvent struct {
	Namespace   string    `json:"namespace"`
	Owner       string    `json:"owner"`
	DocIDs      []string  `json:"doc_ids"`
	CommittedAt time.Time `json:"committed_at"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Notifier is a pipeline commit observer that announces committed
// documents on Kafka.
type Notifier struct {
	publisher EventPublisher
	breaker   *resilience.Breaker
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Notifier. Publishing stops for a while after repeated
// broker failures instead of slowing every commit down.
func New(pub EventPublisher, m *metrics.Metrics, timeout time.Duration) *Notifier {
	if m == nil {
		m = metrics.New()
	}
	return &Notifier{
		publisher: pub,
		breaker: resilience.NewBreaker("kafka-notify", resilience.BreakerConfig{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
		}, m),
		timeout: timeout,
		metrics: m,
		logger:  slog.Default().With("component", "notifier"),
		now:     time.Now,
	}
}

// Committed publishes one CommitEvent per namespace in docs.
func (n *Notifier) Committed(ctx context.Context, docs []index.DocumentWithTokens) error {
	events := n.events(docs)
	if len(events) == 0 {
		return nil
	}
	err := n.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, n.timeout, "publish-commit", func(ctx context.Context) error {
			return n.publisher.PublishBatch(ctx, events)
		})
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		n.metrics.NotificationsTotal.WithLabelValues("rejected").Inc()
		return err
	case err != nil:
		n.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publishing commit of %d documents: %w", len(docs), err)
	}
	n.metrics.NotificationsTotal.WithLabelValues("ok").Add(float64(len(events)))
	return nil
}

func (n *Notifier) events(docs []index.DocumentWithTokens) []kafka.Event {
	at := n.now().UTC()
	var (
		out  []kafka.Event
		byNS = make(map[string]int)
	)
	for _, d := range docs {
		ns := d.Doc.NamespaceID
		i, ok := byNS[ns]
		if !ok {
			i = len(out)
			byNS[ns] = i
			out = append(out, kafka.Event{Key: ns, Value: &CommitEvent{
				Namespace:   ns,
				Owner:       d.Doc.Owner,
				CommittedAt: at,
			}})
		}
		ev := out[i].Value.(*CommitEvent)
		ev.DocIDs = append(ev.DocIDs, d.Doc.DocID)
	}
	return out
}
