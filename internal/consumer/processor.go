// Package consumer reads social events from Kafka and hands them to handlers.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/fitsocial/pkg/platform/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a record emitted by the outbox dispatcher.
type Message struct {
	Topic       string
	Partition   int
	Offset      int64
	Timestamp   time.Time
	Key         string
	EventType   string
	AggregateID string
	Payload     json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryBackoff sets the first and the largest delay between handler retries.
// Delays are jittered.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(p *Processor) {
		if initial > 0 {
			p.retryInitial = initial
		}
		if maxDelay >= initial && maxDelay > 0 {
			p.retryMax = maxDelay
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader       Reader
	handler      Handler
	logger       *zap.Logger
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		logger:       zap.NewNop(),
		retryInitial: 200 * time.Millisecond,
		retryMax:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until the context is cancelled. Records that fail to
// decode are committed so they cannot block the partition. Group commits are
// cumulative, so a record whose handler fails is retried in place until it
// succeeds or ctx ends; it is never committed past.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode failed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr))
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if err := p.handle(ctx, event); err != nil {
			return err
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit failed", zap.Error(commitErr))
		} else {
			recordProcessed(event)
		}
	}
}

// handle calls the handler until it succeeds, backing off exponentially up to
// retryMax between attempts. It only returns ctx's error.
func (p *Processor) handle(ctx context.Context, event Message) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.retryInitial),
		backoff.WithMaxInterval(p.retryMax),
		backoff.WithMaxElapsedTime(0),
	)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return p.handler.Handle(ctx, event)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		p.logger.Error("handler failed",
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
			zap.Int64("offset", event.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
		recordHandlerError(event)
	})
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("payload is not valid JSON")
	}
	if err := validatePayload(string(eventType), msg.Value); err != nil {
		return Message{}, err
	}
	aggregateID, _ := headerValue(msg, "aggregate_id")

	return Message{
		Topic:       msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Time,
		Key:         string(msg.Key),
		EventType:   string(eventType),
		AggregateID: string(aggregateID),
		Payload:     json.RawMessage(append([]byte(nil), msg.Value...)),
	}, nil
}

// validatePayload checks that known event types carry the fields consumers
// rely on. Unknown types pass through untouched.
func validatePayload(eventType string, value []byte) error {
	var missing string
	switch eventType {
	case events.TypeUserFollowed, events.TypeUserUnfollowed:
		var p events.FollowChanged
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		if p.FollowerID == "" || p.TargetID == "" {
			missing = "follower_id/target_id"
		}
	case events.TypeActivityLogged:
		var p events.ActivityLogged
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		if p.ActivityID == "" || p.OwnerID == "" {
			missing = "activity_id/owner_id"
		}
	case events.TypeActivityLiked, events.TypeActivityUnliked:
		var p events.LikeToggled
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		if p.ActivityID == "" || p.UserID == "" {
			missing = "activity_id/user_id"
		}
	case events.TypeActivityCommented:
		var p events.CommentAdded
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		if p.ActivityID == "" || p.CommentID == "" {
			missing = "activity_id/comment_id"
		}
	}
	if missing != "" {
		return fmt.Errorf("%s payload missing %s", eventType, missing)
	}
	return nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
