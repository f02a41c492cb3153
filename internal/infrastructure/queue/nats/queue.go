package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
)

const queueGroup = "docextract-workers"

// Queue carries job IDs on Subject and finished envelopes on ResultSubject.
type Queue struct {
	conn          *nats.Conn
	subject       string
	resultSubject string
	concurrency   int
	executor      *resilience.Executor
	logger        *slog.Logger
}

type Options struct {
	ResultSubject        string
	Concurrency          int
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docextract"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		subject:       subject,
		resultSubject: options.ResultSubject,
		concurrency:   max(1, options.Concurrency),
		executor:      options.ResilienceExecutor,
		logger:        logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishJobQueued(ctx context.Context, jobID string) error {
	return q.publish(ctx, q.subject, []byte(jobID))
}

// PublishOutcome is a no-op when no result subject is configured.
func (q *Queue) PublishOutcome(ctx context.Context, jobID string, outcome domain.Envelope) error {
	if q.resultSubject == "" {
		return nil
	}
	payload, err := json.Marshal(OutcomeMessage{JobID: jobID, Outcome: outcome})
	if err != nil {
		return fmt.Errorf("marshal outcome message: %w", err)
	}
	return q.publish(ctx, q.resultSubject, payload)
}

// OutcomeMessage is the payload published on the result subject.
type OutcomeMessage struct {
	JobID   string          `json:"job_id"`
	Outcome domain.Envelope `json:"outcome"`
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeJobQueued blocks until ctx is done. Each queue-group member handles messages
// sequentially, so Concurrency members give that many parallel extractions.
func (q *Queue) SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error {
	var wg sync.WaitGroup
	subs := make([]*nats.Subscription, 0, q.concurrency)
	for i := 0; i < q.concurrency; i++ {
		sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			wg.Add(1)
			defer wg.Done()

			handlerCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			jobID := string(msg.Data)
			if err := handler(handlerCtx, jobID); err != nil {
				q.logger.Error("job_handler_failed", "job_id", jobID, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	wg.Wait()
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
