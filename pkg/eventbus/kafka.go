package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// ExecutionNotification tells the external workflow runner that an execution
// record is waiting. The engine guarantees at least one notification per
// created execution; channel delivery guarantees are the broker's business.
type ExecutionNotification struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	TriggerType string `json:"trigger_type"`
}

type KafkaNotifierConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
}

type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(cfg KafkaNotifierConfig) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) NotifyExecution(ctx context.Context, notification ExecutionNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(notification.ExecutionID),
		Value: payload,
		Time:  time.Now(),
	}

	return n.writer.WriteMessages(ctx, message)
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
