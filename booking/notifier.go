package booking

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/bytedance/sonic"
)

// SQSAPI is the subset of the SQS client the notifier uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier publishes pending requests to the approval queue.
type SQSNotifier struct {
	client   SQSAPI
	queueURL string
}

// NewSQSNotifier returns a notifier bound to queueURL.
func NewSQSNotifier(client SQSAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

func (n *SQSNotifier) NotifyPending(ctx context.Context, req BookingRequest) error {
	body, err := sonic.MarshalString(req)
	if err != nil {
		return fmt.Errorf("encode pending request: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.Status),
			},
			"requested_date": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.RequestedDate),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
