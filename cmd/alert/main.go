package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/alert"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/events"
	"github.com/wneessen/go-mail"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.EventQueue, // 队列名称
		true,                    // 是否持久化
		false,                   // 是否自动删除
		false,                   // 是否独占
		false,                   // 是否不等待
		nil,                     // 额外参数
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息，关闭自动确认
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				env, err := events.DecodeEnvelope(msg.Body)
				if err != nil {
					logger.Error("调度事件反序列化失败", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}

				// 调参事件只记录日志，不发送邮件
				if env.Type != domain.EventAnomaly {
					logger.Info("收到调度事件", "type", env.Type, "factoryID", env.FactoryID)
					_ = msg.Ack(false)
					continue
				}

				m, err := alert.BuildAnomalyMessage(cfg.Email.SMTP.Username, cfg.Email.AlertRecipient, env)
				if err != nil {
					if errors.Is(err, events.ErrUnexpectedEventType) {
						logger.Error("不支持的事件类型", slog.String("type", env.Type))
					} else {
						logger.Error("无法构建告警邮件", slog.String("error", err.Error()))
					}
					_ = msg.Nack(false, false)
					continue
				}

				// 发送邮件
				if err := client.DialAndSend(m); err != nil {
					logger.Error("邮件发送失败", slog.String("error", err.Error()))
					_ = msg.Nack(false, true) // 将消息重新入队
					continue
				}

				logger.Info("已发送效率异常告警", "factoryID", env.FactoryID)
				_ = msg.Ack(false)
			}
		}
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待调度事件...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 alert worker...")
	cancel()
	wg.Wait()
	logger.Info("alert worker 已成功关闭")
}
