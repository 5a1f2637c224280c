package events

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSubBus wraps the in-memory Bus and also publishes every event to a
// Google Cloud Pub/Sub topic, so the alert-channel transports named out of
// scope in spec §1 (Slack/PagerDuty/Teams webhooks) have a durable queue to
// consume from instead of depending on the gateway's own process lifetime.
//
// Fan-out strategy:
//   - Pub/Sub: durable, at-least-once delivery to the external alert dispatcher
//   - In-memory: immediate delivery to local AuditSink subscribers
type PubSubBus struct {
	*Bus

	client *pubsub.Client
	topic  *pubsub.Topic
	logger *log.Logger
}

// NewPubSubBus creates a Pub/Sub-backed event bus, creating the topic if it
// does not already exist.
func NewPubSubBus(projectID, topicID string) (*PubSubBus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("CreateTopic: %w", err)
		}
		slog.Info("created pub/sub topic", "topic_id", topicID)
	}

	// Ordering by tenant keeps one tenant's alert sequence intact even
	// under concurrent publish.
	topic.EnableMessageOrdering = true

	bus := &PubSubBus{
		Bus:    NewBus(),
		client: client,
		topic:  topic,
		logger: log.New(log.Writer(), "[PUBSUB] ", log.LstdFlags),
	}
	bus.logger.Printf("connected to pub/sub topic projects/%s/topics/%s", projectID, topicID)
	return bus, nil
}

// Emit builds a GatewayEvent, publishes it to Pub/Sub, and fans it out to
// local subscribers.
func (pb *PubSubBus) Emit(eventType, source, correlationID string, data map[string]interface{}) {
	event := NewGatewayEvent(eventType, source, correlationID, data)
	pb.publishToPubSub(event)
	pb.Bus.Publish(event)
}

func (pb *PubSubBus) publishToPubSub(event *GatewayEvent) {
	payload, err := event.JSON()
	if err != nil {
		pb.logger.Printf("failed to marshal event %s: %v", event.ID, err)
		return
	}

	tenantID := event.TenantID
	if tenantID == "" {
		if tid, ok := event.Data["tenant_id"].(string); ok {
			tenantID = tid
		}
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"ce-specversion": event.SpecVersion,
			"ce-type":        event.Type,
			"ce-source":      event.Source,
			"ce-id":          event.ID,
			"ce-time":        event.Time.Format(time.RFC3339Nano),
			"ce-tenantid":    tenantID,
		},
		OrderingKey: tenantID,
	}

	result := pb.topic.Publish(context.Background(), msg)
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			pb.logger.Printf("pub/sub publish failed for %s: %v", event.ID, err)
		}
	}()
}

// Close shuts the Pub/Sub client down.
func (pb *PubSubBus) Close() error {
	pb.topic.Stop()
	if err := pb.client.Close(); err != nil {
		return fmt.Errorf("pubsub client close: %w", err)
	}
	return nil
}

// HealthCheck verifies the Pub/Sub topic is reachable.
func (pb *PubSubBus) HealthCheck(ctx context.Context) error {
	exists, err := pb.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("topic health check: %w", err)
	}
	if !exists {
		return fmt.Errorf("topic does not exist")
	}
	return nil
}

var _ EventEmitter = (*PubSubBus)(nil)
