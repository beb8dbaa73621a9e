package callback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/logger"
	"github.com/theory-cloud/sfntasks/pkg/observability"
)

// Handler does the work for one task. Its result is sent with SendTaskSuccess; an error
// is sent with SendTaskFailure, using the code of a *TaskError when there is one.
type Handler func(ctx context.Context, task Task) (any, error)

// Processor runs a Handler for a message body and completes the token.
type Processor struct {
	completer *Completer
	handler   Handler
	logger    observability.StructuredLogger

	// HeartbeatInterval, when positive, sends heartbeats while the handler runs.
	HeartbeatInterval time.Duration
}

func NewProcessor(completer *Completer, handler Handler, l observability.StructuredLogger) *Processor {
	return &Processor{completer: completer, handler: handler, logger: observability.OrNoOp(l)}
}

// Process handles one message. A returned error means completion could not be reported
// and the message should be retried; handler failures are reported and return nil.
// Messages without a token are dropped (nil) since no retry can fix them.
func (p *Processor) Process(ctx context.Context, messageID string, body []byte) error {
	log := p.logger
	if messageID != "" {
		log = log.WithMessageID(messageID)
	}

	task, err := ParseTask(body)
	if err != nil {
		observability.Record(log, observability.Event{Level: "error", Name: "task.token_missing", Fields: map[string]any{"error": err}})
		return nil
	}
	task.MessageID = messageID
	log = log.WithField("task_token_source", logger.TaskToken(task.Token))

	output, handlerErr := p.run(ctx, task, log)
	if handlerErr != nil {
		code, cause := DefaultErrorCode, handlerErr.Error()
		var taskErr *TaskError
		if errors.As(handlerErr, &taskErr) {
			code, cause = taskErr.Code, taskErr.Cause
		}
		observability.Record(log, observability.Event{Level: "warn", Name: "task.handler_failed", Fields: map[string]any{"error_code": code}})
		return completed(p.completer.Fail(ctx, task.Token, code, cause), log)
	}
	return completed(p.completer.Succeed(ctx, task.Token, output), log)
}

// completed logs the outcome of a completion call. A task that already timed out or
// finished counts as done.
func completed(err error, log observability.StructuredLogger) error {
	switch {
	case err == nil:
		observability.Record(log, observability.Event{Name: "task.completed"})
		return nil
	case errors.Is(err, ErrTaskGone):
		observability.Record(log, observability.Event{Level: "warn", Name: "task.gone", Fields: map[string]any{"error": err}})
		return nil
	default:
		observability.Record(log, observability.Event{Level: "error", Name: "task.complete_failed", Fields: map[string]any{"error": err}})
		return err
	}
}

func (p *Processor) run(ctx context.Context, task Task, log observability.StructuredLogger) (any, error) {
	if p.HeartbeatInterval <= 0 {
		return p.handler(ctx, task)
	}

	hbCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := p.completer.Heartbeat(hbCtx, task.Token); err != nil && hbCtx.Err() == nil {
					log.Warn("task.heartbeat_failed", map[string]any{"error": err})
				}
			}
		}
	}()

	out, err := p.handler(ctx, task)
	stop()
	wg.Wait()
	return out, err
}
