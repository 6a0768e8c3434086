package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// Channel 是 *amqp.Channel 中发布消息用到的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher 把调度事件以 JSON 形式发布到 RabbitMQ 队列
type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

func NewPublisher(ch Channel, queue string, timeout time.Duration) *Publisher {
	return &Publisher{ch: ch, queue: queue, timeout: timeout}
}

func (p *Publisher) Publish(event *domain.SchedulerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("无法序列化调度事件: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("无法发布调度事件: %w", err)
	}

	return nil
}

// PublishFeedback 用于把产出反馈异步写入反馈队列，由 api 进程通过 ConsumeFeedback 消费
func (p *Publisher) PublishFeedback(fb *domain.AllocationFeedback) error {
	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("无法序列化产出反馈: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx, "", p.queue, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Body:         body,
	})
}
