package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/theory-cloud/sfntasks/pkg/observability"
)

// QueueAPI is the part of *sqs.Client a Worker uses.
type QueueAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var _ QueueAPI = (*sqs.Client)(nil)

const (
	defaultConcurrency = 4
	defaultWaitSeconds = 20
	maxBatch           = 10
)

// WorkerConfig configures a Worker. Zero values select defaults.
type WorkerConfig struct {
	QueueURL string
	// Concurrency bounds the number of handlers running at once.
	Concurrency int
	// WaitTimeSeconds is the long-poll wait, 0..20.
	WaitTimeSeconds int32
	// VisibilityTimeout overrides the queue setting when positive.
	VisibilityTimeout time.Duration
	// PollBackoff is the pause after a failed receive.
	PollBackoff time.Duration
}

// Worker polls an SQS queue fed by SqsSendMessage tasks and completes their tokens.
type Worker struct {
	queue     QueueAPI
	processor *Processor
	cfg       WorkerConfig
	logger    observability.StructuredLogger
}

func NewWorker(queue QueueAPI, processor *Processor, cfg WorkerConfig, l observability.StructuredLogger) (*Worker, error) {
	if queue == nil || processor == nil {
		return nil, errors.New("callback: queue and processor are required")
	}
	if cfg.QueueURL == "" {
		return nil, errors.New("callback: queue url is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.WaitTimeSeconds <= 0 || cfg.WaitTimeSeconds > defaultWaitSeconds {
		cfg.WaitTimeSeconds = defaultWaitSeconds
	}
	if cfg.PollBackoff <= 0 {
		cfg.PollBackoff = time.Second
	}
	return &Worker{queue: queue, processor: processor, cfg: cfg, logger: observability.OrNoOp(l)}, nil
}

// Run polls until ctx is cancelled, then waits for in-flight handlers and returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		free := w.cfg.Concurrency - len(sem)
		messages, err := w.receive(ctx, min(max(free, 1), maxBatch))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("queue.receive_failed", map[string]any{"error": err})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.PollBackoff):
			}
			continue
		}

		for _, msg := range messages {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			wg.Add(1)
			go func(msg sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, msg)
			}(msg)
		}
	}
}

func (w *Worker) receive(ctx context.Context, n int) ([]sqstypes.Message, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.cfg.QueueURL),
		MaxNumberOfMessages: int32(n),
		WaitTimeSeconds:     w.cfg.WaitTimeSeconds,
	}
	if w.cfg.VisibilityTimeout > 0 {
		in.VisibilityTimeout = int32(w.cfg.VisibilityTimeout / time.Second)
	}
	out, err := w.queue.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("callback: receive message: %w", err)
	}
	return out.Messages, nil
}

// handle processes one message and deletes it unless completion must be retried.
// Work already started is not cut short by ctx.
func (w *Worker) handle(ctx context.Context, msg sqstypes.Message) {
	ctx = context.WithoutCancel(ctx)
	id := aws.ToString(msg.MessageId)

	if err := w.processor.Process(ctx, id, []byte(aws.ToString(msg.Body))); err != nil {
		return
	}

	_, err := w.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.logger.WithMessageID(id).Error("queue.delete_failed", map[string]any{"error": err})
	}
}
