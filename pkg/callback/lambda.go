package callback

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaSQSHandler adapts p to an SQS event source mapping with ReportBatchItemFailures.
// Records whose completion could not be reported are returned as failures.
func LambdaSQSHandler(p *Processor) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
		var resp events.SQSEventResponse
		for _, record := range event.Records {
			if err := p.Process(ctx, record.MessageId, []byte(record.Body)); err != nil {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			}
		}
		return resp, nil
	}
}
