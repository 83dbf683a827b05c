package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Stage names a pipeline stage a task is addressed to.
type Stage string

const (
	// StageSummarize runs Map-Reduce summarization over location ids.
	StageSummarize Stage = "summarize"

	// StageIndex embeds and indexes reviews for location ids.
	StageIndex Stage = "index"
)

// subjectPrefix namespaces the pipeline task subjects.
const subjectPrefix = "vibes.pipeline."

// taskTimeout bounds one dispatched stage run.
const taskTimeout = 10 * time.Minute

// Task is one unit of cross-stage handoff: the successor stage and the
// location ids it should process.
type Task struct {
	Stage       Stage    `json:"stage"`
	LocationIDs []string `json:"location_ids"`
}

// Handler runs a dispatched task. Handlers contain their own failures; the
// dispatcher never retries.
type Handler func(ctx context.Context, task Task)

// Dispatcher decouples stage lifetimes: a stage publishes the successor task
// and returns without waiting for, or observing, downstream completion.
type Dispatcher interface {
	// Publish enqueues a task for asynchronous execution.
	Publish(ctx context.Context, task Task) error

	// Start begins consuming tasks with the given handler.
	Start(handler Handler) error

	// Close stops consumption and releases resources.
	Close() error
}

// NATSDispatcher routes tasks through NATS, one subject per stage.
type NATSDispatcher struct {
	conn   *nats.Conn
	logger *zap.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSDispatcher creates a dispatcher over an established NATS connection.
// The connection is owned by the caller and not closed by Close.
func NewNATSDispatcher(conn *nats.Conn, logger *zap.Logger) (*NATSDispatcher, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nats connection required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSDispatcher{conn: conn, logger: logger}, nil
}

// Publish sends the task to its stage subject.
func (d *NATSDispatcher) Publish(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task: %w", err)
	}
	if err := d.conn.Publish(subjectPrefix+string(task.Stage), data); err != nil {
		return fmt.Errorf("publishing %s task: %w", task.Stage, err)
	}
	return nil
}

// Start subscribes to all stage subjects. Tasks run sequentially per subject
// in the NATS delivery goroutine, preserving the batch-at-a-time throttling
// the external model APIs rely on.
func (d *NATSDispatcher) Start(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler required", ErrInvalidConfig)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, stage := range []Stage{StageSummarize, StageIndex} {
		sub, err := d.conn.Subscribe(subjectPrefix+string(stage), func(msg *nats.Msg) {
			var task Task
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				d.logger.Error("dropping malformed task",
					zap.String("subject", msg.Subject),
					zap.Error(err))
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			defer cancel()
			handler(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", stage, err)
		}
		d.subs = append(d.subs, sub)
	}
	return nil
}

// Close drains the subscriptions.
func (d *NATSDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, sub := range d.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.subs = nil
	return firstErr
}

// InProcDispatcher is a channel-backed Dispatcher for tests and broker-less
// single-process runs.
type InProcDispatcher struct {
	tasks  chan Task
	logger *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewInProcDispatcher creates an in-process dispatcher with a bounded queue.
func NewInProcDispatcher(queueSize int, logger *zap.Logger) *InProcDispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcDispatcher{
		tasks:  make(chan Task, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Publish enqueues the task, failing fast when the queue is full.
func (d *InProcDispatcher) Publish(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.tasks <- task:
		return nil
	default:
		return fmt.Errorf("task queue full, dropping %s task", task.Stage)
	}
}

// Start consumes tasks on a single goroutine until Close.
func (d *InProcDispatcher) Start(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler required", ErrInvalidConfig)
	}

	d.startOnce.Do(func() {
		go func() {
			for {
				select {
				case task := <-d.tasks:
					ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
					handler(ctx, task)
					cancel()
				case <-d.done:
					return
				}
			}
		}()
	})
	return nil
}

// Close stops the consumer goroutine. Queued tasks are dropped.
func (d *InProcDispatcher) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

var (
	_ Dispatcher = (*NATSDispatcher)(nil)
	_ Dispatcher = (*InProcDispatcher)(nil)
)
