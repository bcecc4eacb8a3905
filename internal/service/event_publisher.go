package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/pkg/kafka"
)

// EventPublisher defines the interface for publishing audit events
type EventPublisher interface {
	// PublishSessionEvent publishes a session lifecycle event
	PublishSessionEvent(ctx context.Context, eventType domain.StreamEventType, session *domain.Session) error

	// PublishLedgerEvent publishes a balance movement event
	PublishLedgerEvent(ctx context.Context, tx *domain.Transaction) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer     *kafka.Producer
	sessionTopic string
	ledgerTopic  string
	serviceName  string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers      []string
	SessionTopic string
	LedgerTopic  string
	ServiceName  string
	ClientID     string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	sessionTopic := cfg.SessionTopic
	if sessionTopic == "" {
		sessionTopic = "session-events"
	}

	ledgerTopic := cfg.LedgerTopic
	if ledgerTopic == "" {
		ledgerTopic = "ledger-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stagedoor"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "stagedoor-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:     producer,
		sessionTopic: sessionTopic,
		ledgerTopic:  ledgerTopic,
		serviceName:  serviceName,
	}, nil
}

// PublishSessionEvent publishes a session lifecycle event
func (p *KafkaEventPublisher) PublishSessionEvent(ctx context.Context, eventType domain.StreamEventType, session *domain.Session) error {
	eventID := uuid.New().String()
	event := domain.NewSessionEvent(eventType, session, eventID)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.produce(ctx, p.sessionTopic, eventType, eventID, event.Key(), value)
}

// PublishLedgerEvent publishes a balance movement event
func (p *KafkaEventPublisher) PublishLedgerEvent(ctx context.Context, tx *domain.Transaction) error {
	eventID := uuid.New().String()
	event := domain.NewLedgerEvent(tx, eventID)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.produce(ctx, p.ledgerTopic, event.EventType, eventID, event.Key(), value)
}

func (p *KafkaEventPublisher) produce(ctx context.Context, topic string, eventType domain.StreamEventType, eventID, key string, value []byte) error {
	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     eventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     topic,
		Key:       []byte(key),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishSessionEvent is a no-op
func (p *NoOpEventPublisher) PublishSessionEvent(ctx context.Context, eventType domain.StreamEventType, session *domain.Session) error {
	return nil
}

// PublishLedgerEvent is a no-op
func (p *NoOpEventPublisher) PublishLedgerEvent(ctx context.Context, tx *domain.Transaction) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
