package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/orderflow/pkg/outbox/registry"
)

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicLookup returns nil when the topic has no publisher.
type topicLookup func(topic string) topicPublisher

func pubSubTopics(client pubSubClient) topicLookup {
	return func(topic string) topicPublisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpTopic{p: p}
	}
}

type gcpTopic struct {
	p *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{r: t.p.Publish(ctx, msg)}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.r == nil {
		return "", errors.New("publish result is nil")
	}
	return r.r.Get(ctx)
}

// classifyPublishError marks gRPC failures that a retry cannot fix.
func classifyPublishError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return registry.NewNonRetryableError(err)
	default:
		return err
	}
}
