package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventPublisher sends shop events to a topic. eventType travels as the
// event_type message attribute so subscriptions can filter on it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, payload []byte) error
}

type SNSPublisher struct {
	client *sns.Client
}

func NewSNSPublisher(cfg sdkaws.Config) *SNSPublisher {
	return &SNSPublisher{client: sns.NewFromConfig(cfg)}
}

func (p *SNSPublisher) PublishEvent(ctx context.Context, topicArn, eventType string, payload []byte) error {
	if topicArn == "" {
		return errors.New("sns: empty topic arn")
	}
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: sdkaws.String(topicArn),
		Subject:  sdkaws.String("shop." + eventType),
		Message:  sdkaws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(eventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topicArn, err)
	}
	return nil
}
