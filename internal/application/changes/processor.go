// Package changes reacts to collection edits arriving on the change topic:
// it drops the stale analysis, derives a change insight, raises follow-up
// notifications and publishes both to the insights topic.
package changes

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/validation"
)

// PrewarmLeaseTTL bounds how long one replica may hold a user's prewarm lease.
const PrewarmLeaseTTL = 30 * time.Second

// Publisher writes records to the insights topic. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// Lease is a cross-replica lock. *redis.Mutex implements it.
type Lease interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LeaseFunc returns the lease guarding name.
type LeaseFunc func(name string) Lease

// Metrics counts what the processor emits.
type Metrics interface {
	RecordInsightPublished(eventType string)
	RecordNotifications(kind string, n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordInsightPublished(string)   {}
func (nopMetrics) RecordNotifications(string, int) {}

// Config wires a Processor. Engine, Publisher and InsightsTopic are required.
type Config struct {
	Engine        intelligence.Engine
	Publisher     Publisher
	InsightsTopic string

	// Prewarm recomputes the analysis after invalidation. With Leases set,
	// only the replica holding the user's lease does so.
	Prewarm bool
	Leases  LeaseFunc

	Metrics Metrics
	Clock   intelligence.Clock
	Logger  logging.Logger
}

// Result summarises one processed change.
type Result struct {
	Insight       *intelligence.ChangeReport
	Notifications []*intelligence.SmartNotification
	Prewarmed     bool
}

// Processor handles collection change events.
type Processor struct {
	engine    intelligence.Engine
	publisher Publisher
	topic     string
	prewarm   bool
	leases    LeaseFunc
	metrics   Metrics
	clock     intelligence.Clock
	logger    logging.Logger
}

func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Engine == nil {
		return nil, errors.NewValidation("engine is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.NewValidation("publisher is required")
	}
	if cfg.InsightsTopic == "" {
		return nil, errors.NewValidation("insights topic is required")
	}
	p := &Processor{
		engine:    cfg.Engine,
		publisher: cfg.Publisher,
		topic:     cfg.InsightsTopic,
		prewarm:   cfg.Prewarm,
		leases:    cfg.Leases,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if p.metrics == nil {
		p.metrics = nopMetrics{}
	}
	if p.clock == nil {
		p.clock = intelligence.SystemClock{}
	}
	if p.logger == nil {
		p.logger = logging.NewNopLogger()
	}
	p.logger = p.logger.Named("changes")
	return p, nil
}

// Handle is the kafka.MessageHandler for the change topic. A returned error
// makes the consumer retry and eventually dead-letter the record.
func (p *Processor) Handle(ctx context.Context, msg *kafka.Message) error {
	ev, err := DecodeChangeEvent(msg.Value)
	if err != nil {
		p.logger.Warn("rejected change event",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return err
	}
	_, err = p.Process(ctx, ev)
	return err
}

// DecodeChangeEvent parses and validates a raw change event.
func DecodeChangeEvent(data []byte) (collection.ChangeEvent, error) {
	var ev collection.ChangeEvent
	if len(data) == 0 {
		return ev, errors.NewValidation("empty change event")
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode change event")
	}
	if err := validation.Struct(&ev); err != nil {
		return ev, err
	}
	if !ev.UsageFrequency.IsValid() {
		return ev, errors.NewValidation("usage_frequency %q is invalid", ev.UsageFrequency)
	}
	return ev, nil
}

// Process invalidates the user's analysis and publishes the change insight
// plus any notification the change warrants.
func (p *Processor) Process(ctx context.Context, ev collection.ChangeEvent) (*Result, error) {
	if err := p.engine.InvalidateCacheOnCollectionChange(ctx, ev.UserID, &ev); err != nil {
		return nil, err
	}

	report := p.engine.Insights().DetectCollectionChanges(ctx, ev.UserID, ev)
	if err := report.Err(); err != nil {
		return nil, err
	}
	res := &Result{Insight: report}
	if err := p.publish(ctx, kafka.EventChangeInsight, ev, report); err != nil {
		return nil, err
	}

	for _, n := range p.notify(ctx, ev, report.Impact) {
		if err := p.publish(ctx, kafka.EventNotification, ev, n); err != nil {
			return nil, err
		}
		p.metrics.RecordNotifications(string(n.Type), 1)
		res.Notifications = append(res.Notifications, n)
	}

	if p.prewarm {
		res.Prewarmed = p.warm(ctx, ev.UserID)
	}

	p.logger.Info("change processed",
		logging.UserID(ev.UserID),
		logging.String("change_type", string(ev.ChangeType)),
		logging.String("fragrance_id", ev.FragranceID),
		logging.Int("notifications", len(res.Notifications)),
		logging.Bool("prewarmed", res.Prewarmed))
	return res, nil
}

// notify generates the notifications implied by impact. A failed template
// is logged and skipped so the insight still goes out.
func (p *Processor) notify(ctx context.Context, ev collection.ChangeEvent, impact intelligence.ChangeImpact) []*intelligence.SmartNotification {
	var out []*intelligence.SmartNotification
	add := func(trigger intelligence.TriggerType, values map[string]string) {
		rep := p.engine.Insights().GenerateSmartNotification(ctx, ev.UserID, trigger, values)
		if err := rep.Err(); err != nil || rep.Notification == nil {
			p.logger.Warn("notification skipped",
				logging.UserID(ev.UserID),
				logging.String("trigger", string(trigger)),
				logging.Err(err))
			return
		}
		out = append(out, rep.Notification)
	}

	if impact.HighRating {
		values := map[string]string{"fragrance_id": ev.FragranceID}
		if ev.Rating > 0 {
			values["rating"] = strconv.Itoa(ev.Rating)
		}
		add(intelligence.TriggerNewHighRating, values)
	}
	if impact.MilestoneReached {
		add(intelligence.TriggerCollectionMilestone, map[string]string{"count": strconv.Itoa(impact.SizeAfter)})
	}
	return out
}

func (p *Processor) publish(ctx context.Context, eventType string, ev collection.ChangeEvent, payload interface{}) error {
	env, err := kafka.NewEventEnvelope(eventType, ev.UserID, payload, p.clock.Now())
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		env.Metadata = map[string]string{"cause_event_id": ev.EventID}
	}
	msg, err := env.ToMessage(p.topic)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		return errors.Wrapf(err, errors.ErrCodeServiceUnavailable, "failed to publish %s", eventType)
	}
	p.metrics.RecordInsightPublished(eventType)
	return nil
}

// warm recomputes the analysis so the next read is a cache hit. Failures
// only cost the warm-up.
func (p *Processor) warm(ctx context.Context, userID string) bool {
	if p.leases != nil {
		lease := p.leases("prewarm:" + userID)
		ok, err := lease.TryLock(ctx)
		if err != nil {
			p.logger.Warn("prewarm lease failed", logging.UserID(userID), logging.Err(err))
			return false
		}
		if !ok {
			p.logger.Debug("prewarm held elsewhere", logging.UserID(userID))
			return false
		}
		defer func() {
			if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("prewarm unlock failed", logging.UserID(userID), logging.Err(err))
			}
		}()
	}
	analysis := p.engine.AnalyzeCollection(ctx, userID)
	if err := analysis.Err(); err != nil {
		p.logger.Warn("prewarm analysis failed", logging.UserID(userID), logging.Err(err))
		return false
	}
	return true
}
