package events

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// permanentFeedbackErrors 重试也不会成功的错误，对应的消息直接丢弃
var permanentFeedbackErrors = []error{
	domain.ErrInvalidFeedback,
	domain.ErrWorkerNotFound,
}

// ConsumeFeedback 逐条处理反馈队列中的消息，直到 ctx 被取消或通道关闭。
// 消息需要手动确认：解析失败或数据无效时丢弃，存储失败时重新入队。
func ConsumeFeedback(ctx context.Context, deliveries <-chan amqp.Delivery, record func(*domain.AllocationFeedback) error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				logger.Warn("反馈队列通道已关闭")
				return
			}
			handleFeedback(msg, record, logger)
		}
	}
}

func handleFeedback(msg amqp.Delivery, record func(*domain.AllocationFeedback) error, logger *slog.Logger) {
	fb, err := DecodeFeedback(msg.Body)
	if err != nil {
		logger.Error("产出反馈反序列化失败", "messageID", msg.MessageId, "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := record(fb); err != nil {
		for _, target := range permanentFeedbackErrors {
			if errors.Is(err, target) {
				logger.Warn("丢弃无效的产出反馈", "messageID", msg.MessageId, "factoryID", fb.FactoryID, "workerID", fb.WorkerID, "error", err)
				_ = msg.Nack(false, false)
				return
			}
		}

		logger.Error("无法记录产出反馈", "messageID", msg.MessageId, "error", err)
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}

	_ = msg.Ack(false)
}
