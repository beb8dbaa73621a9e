package testkit

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// FakeSQSQueue is an in-memory queue. ReceiveMessage blocks until a message is
// available or ctx is done, like a long poll that never times out.
type FakeSQSQueue struct {
	mu       sync.Mutex
	ready    chan struct{}
	pending  []sqstypes.Message
	inFlight map[string]sqstypes.Message
	deleted  []string
	nextID   int

	ReceiveErr error
}

func NewFakeSQSQueue() *FakeSQSQueue {
	return &FakeSQSQueue{ready: make(chan struct{}, 1), inFlight: map[string]sqstypes.Message{}, nextID: 1}
}

// Enqueue adds a message and returns its id.
func (q *FakeSQSQueue) Enqueue(body string) string {
	q.mu.Lock()
	id := "msg-" + strconv.Itoa(q.nextID)
	q.nextID++
	q.pending = append(q.pending, sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
	})
	q.mu.Unlock()
	q.signal()
	return id
}

func (q *FakeSQSQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *FakeSQSQueue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	limit := int(params.MaxNumberOfMessages)
	if limit <= 0 {
		limit = 1
	}
	for {
		q.mu.Lock()
		if q.ReceiveErr != nil {
			err := q.ReceiveErr
			q.mu.Unlock()
			return nil, err
		}
		if len(q.pending) > 0 {
			n := min(limit, len(q.pending))
			out := append([]sqstypes.Message(nil), q.pending[:n]...)
			q.pending = q.pending[n:]
			for _, msg := range out {
				q.inFlight[aws.ToString(msg.ReceiptHandle)] = msg
			}
			more := len(q.pending) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return &sqs.ReceiveMessageOutput{Messages: out}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *FakeSQSQueue) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	handle := aws.ToString(params.ReceiptHandle)
	q.mu.Lock()
	defer q.mu.Unlock()
	msg, ok := q.inFlight[handle]
	if !ok {
		return nil, errors.New("testkit: unknown receipt handle " + handle)
	}
	delete(q.inFlight, handle)
	q.deleted = append(q.deleted, aws.ToString(msg.MessageId))
	return &sqs.DeleteMessageOutput{}, nil
}

// Deleted returns the ids of deleted messages in deletion order.
func (q *FakeSQSQueue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// InFlight returns the number of received but undeleted messages.
func (q *FakeSQSQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}
