package events

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/google/uuid"

	"AProject/logger"
)

// Event 在线状态变更事件，发给下游消费方
type Event struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Status     string    `json:"status"` // online / offline
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ReasonLogin      = "login"
	ReasonLogout     = "logout"
	ReasonExpired    = "expired"
	ReasonInactivity = "inactivity"
	ReasonMalformed  = "malformed"
)

// Sink 事件出口。在线状态变化是尽力通知，不挡主流程。
type Sink interface {
	Emit(ev Event)
}

// NopSink 关闭事件上报时使用
type NopSink struct{}

func (NopSink) Emit(Event) {}

// Producer Kafka 异步生产者实现的 Sink
type Producer struct {
	async sarama.AsyncProducer
	topic string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		for err := range p.Errors() {
			logger.Errorf("presence event publish failed: %v", err)
		}
	}()

	return &Producer{async: p, topic: topic}, nil
}

func (p *Producer) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("presence event marshal: %v", err)
		return
	}
	p.async.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.IdentityID),
		Value: sarama.ByteEncoder(raw),
	}
}

func (p *Producer) Close() error {
	return p.async.Close()
}
