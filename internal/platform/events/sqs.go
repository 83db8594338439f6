package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ehr/copilot/internal/platform/metrics"
	"github.com/ehr/copilot/internal/platform/middleware"
)

// SQSAPI is the part of *sqs.Client the publisher needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// NewSQSClient builds a client from the default AWS credential chain.
func NewSQSClient(ctx context.Context) (*sqs.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	}), nil
}

// SQSPublisher sends each audit entry as one JSON queue message.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher accepts either a queue URL or a queue name; names are
// resolved once here.
func NewSQSPublisher(ctx context.Context, client SQSAPI, queue string) (*SQSPublisher, error) {
	queueURL := queue
	if !strings.HasPrefix(queue, "https://") && !strings.HasPrefix(queue, "http://") {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queue)})
		if err != nil {
			return nil, fmt.Errorf("resolve SQS queue %s: %w", queue, err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}
	return &SQSPublisher{client: client, queueURL: queueURL}, nil
}

func (p *SQSPublisher) RecordAccess(ctx context.Context, entry middleware.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(entry.Action)},
		},
	})
	if err != nil {
		metrics.RecordAuditPublishFailure("sqs")
		return fmt.Errorf("send audit entry to SQS: %w", err)
	}
	return nil
}
