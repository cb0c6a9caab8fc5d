package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/resilience"
)

const (
	DefaultSubjectPrefix = "eteeap.workflow"
	journalQueueGroup    = "journal"
)

// Queue carries workflow events over NATS core subjects, one per event type.
type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	ClientName           string
}

func New(url, subjectPrefix string) (*Queue, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

func NewWithOptions(url, subjectPrefix string, options Options) (*Queue, error) {
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
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := options.ClientName
	if name == "" {
		name = "eteeap-applicant-client"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
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
		conn:     conn,
		prefix:   normalizePrefix(subjectPrefix),
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}

func subjectFor(prefix string, eventType domain.EventType) string {
	return prefix + "." + string(eventType)
}

func (q *Queue) PublishWorkflowEvent(ctx context.Context, event domain.WorkflowEvent) error {
	msg, err := encodeEvent(q.prefix, event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

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

// SubscribeWorkflowEvents delivers every workflow event to handler until ctx
// ends, sharing the load with other journal subscribers.
func (q *Queue) SubscribeWorkflowEvents(ctx context.Context, handler func(context.Context, domain.WorkflowEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.prefix+".>", journalQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg)
		if err != nil {
			q.logger.Error("workflow_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			q.logger.Error("workflow_event_handler_failed",
				"event_id", event.ID,
				"event_type", string(event.Type),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(prefix string, event domain.WorkflowEvent) (*nats.Msg, error) {
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("workflow event needs id and type")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode workflow event: %w", err)
	}
	msg := nats.NewMsg(subjectFor(prefix, event.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	return msg, nil
}

func decodeEvent(msg *nats.Msg) (domain.WorkflowEvent, error) {
	var event domain.WorkflowEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return domain.WorkflowEvent{}, fmt.Errorf("decode workflow event: %w", err)
	}
	if event.ID == "" && msg.Header != nil {
		event.ID = msg.Header.Get(nats.MsgIdHdr)
	}
	if event.ID == "" {
		return domain.WorkflowEvent{}, fmt.Errorf("workflow event without id")
	}
	return event, nil
}

// Noop drops events. It stands in when no NATS server is configured.
type Noop struct{}

func (Noop) PublishWorkflowEvent(context.Context, domain.WorkflowEvent) error { return nil }
