package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/events"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/handler"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/scheduler"
	"golang.org/x/crypto/bcrypt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	if err := ensureInitialAdmin(cfg, repo); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	// 声明队列
	for _, queue := range []string{cfg.RabbitMQ.EventQueue, cfg.RabbitMQ.FeedbackQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			logger.Error("无法声明队列", "queue", queue, "error", err)
			return
		}
	}

	publishTimeout := time.Duration(cfg.RabbitMQ.PublishTimeout) * time.Second
	eventPublisher := events.NewPublisher(ch, cfg.RabbitMQ.EventQueue, publishTimeout)
	feedbackPublisher := events.NewPublisher(ch, cfg.RabbitMQ.FeedbackQueue, publishTimeout)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	baseScores := cache.NewBaseScoreStore(rdb, cfg.Redis.BaseScorePrefix, time.Duration(cfg.Redis.OperationTimeout)*time.Second)

	/**********************************************
	 * 创建 prometheus 指标
	 **********************************************/
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := metrics.New(registry, "")
	if err != nil {
		logger.Error("无法注册指标", "error", err)
		return
	}

	/**********************************************
	 * 创建调度器
	 **********************************************/
	sched, err := scheduler.New(scheduler.Dependencies{
		Configs:    repo,
		Workers:    repo,
		Skus:       repo,
		Feedback:   repo,
		Logs:       repo,
		Queues:     repo,
		BaseScorer: baseScores,
		Events:     eventPublisher,
		Metrics:    collector,
		Logger:     logger,
		Defaults:   cfg.Scheduler.ForFactory,
	})
	if err != nil {
		logger.Error("无法创建调度器", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, sched, baseScores, feedbackPublisher, registry)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动后台任务：定时自适应调参、消费产出反馈
	 **********************************************/
	// 反馈必须在持有公平性状态的同一进程中处理，否则内存中的虚拟队列会与存储不一致
	consumeCh, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer consumeCh.Close()

	if err := consumeCh.Qos(cfg.RabbitMQ.Prefetch, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}
	deliveries, err := consumeCh.Consume(cfg.RabbitMQ.FeedbackQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("无法消费反馈队列", "error", err)
		return
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runTuner(workerCtx, logger, sched, time.Duration(cfg.Scheduler.TunerInterval)*time.Second)
	}()
	go func() {
		defer wg.Done()
		events.ConsumeFeedback(workerCtx, deliveries, sched.RecordFeedback, logger)
	}()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")
	stopWorkers()
	wg.Wait()

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}

func ensureInitialAdmin(cfg *config.Config, repo *repository.Repository) error {
	_, err := repo.GetOperatorByUsername(cfg.InitialAdmin.Username)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, domain.ErrOperatorNotFound):
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	initialAdmin := &domain.Operator{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	}
	if err := repo.CreateOperator(initialAdmin); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "operators_username_key" {
			// 多个实例同时启动时可能已经被其他实例创建
			return nil
		}
		return err
	}

	slog.Info("已创建初始管理员", "username", initialAdmin.Username)
	return nil
}

// runTuner 按固定间隔对所有工厂执行自适应调参，直到 ctx 被取消
func runTuner(ctx context.Context, logger *slog.Logger, sched *scheduler.Scheduler, interval time.Duration) {
	if interval <= 0 {
		logger.Warn("未开启定时自适应调参")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sched.AdaptAll(); err != nil {
				logger.Error("定时自适应调参出现错误", "error", err)
			}
		}
	}
}
