package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/events"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/seed"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var factoryID int64
	var file string
	var randSeed uint64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机工人, 2: 插入随机 SKU, 3: 发布随机产出反馈, 4: 导入花名册, 5: 写入随机基础分)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Int64Var(&factoryID, "factory", 1, "工厂 ID")
	flag.StringVar(&file, "file", "", "花名册 CSV 文件路径")
	flag.Uint64Var(&randSeed, "seed", uint64(time.Now().UnixNano()), "随机数种子")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if factoryID <= 0 {
		logger.Error("请输入合法的工厂 ID")
		return
	}

	// 创建数据库连接池
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

	// 创建 repository 和调度器，种子数据与线上走同一套校验
	repo := repository.NewRepository(cfg, dbpool)
	sched, err := scheduler.New(scheduler.Dependencies{
		Configs:  repo,
		Workers:  repo,
		Skus:     repo,
		Feedback: repo,
		Logs:     repo,
		Logger:   logger,
		Defaults: cfg.Scheduler.ForFactory,
	})
	if err != nil {
		logger.Error("无法创建调度器", "error", err)
		return
	}

	r := rand.New(rand.NewPCG(randSeed, randSeed))

	// 执行操作
	switch op {
	case 0:
		logger.Error("未指定操作")
	case 1:
		if n <= 0 {
			logger.Error("请输入合法的工人数量")
			return
		}

		cnt := 0
		now := time.Now()
		for range n {
			w := utils.GenerateRandomWorker(r, factoryID, now)
			if err := sched.TempWorkers.RegisterWorker(w); err != nil {
				// 工号是随机生成的，偶尔会撞上
				logger.Error("无法插入工人", "code", w.Code, "error", err)
				continue
			}
			cnt++
		}

		logger.Info("插入工人成功", "count", cnt)
	case 2:
		if n <= 0 {
			logger.Error("请输入合法的 SKU 数量")
			return
		}

		cnt := 0
		for range n {
			code := utils.GenerateRandomSkuCode(r)
			level := r.IntN(domain.MaxComplexity) + domain.MinComplexity
			if _, err := sched.Sku.SetComplexity(factoryID, code, level); err != nil {
				logger.Error("无法插入 SKU", "sku", code, "error", err)
				continue
			}
			cnt++
		}

		logger.Info("插入 SKU 成功", "count", cnt)
	case 3:
		if n <= 0 {
			logger.Error("请输入合法的反馈数量")
			return
		}
		if err := publishFeedback(cfg, repo, r, factoryID, n, logger); err != nil {
			logger.Error("无法发布产出反馈", "error", err)
		}
	case 4:
		if err := importRoster(sched.TempWorkers, file, factoryID, logger); err != nil {
			logger.Error("无法导入花名册", "file", file, "error", err)
		}
	case 5:
		if err := seedBaseScores(cfg, repo, r, factoryID, logger); err != nil {
			logger.Error("无法写入基础分", "error", err)
		}
	default:
		logger.Error("指定的操作非法")
	}
}

// publishFeedback 把随机反馈投递到反馈队列，由 api 进程消费，避免绕过内存中的公平性状态
func publishFeedback(cfg *config.Config, repo *repository.Repository, r *rand.Rand, factoryID int64, n int, logger *slog.Logger) error {
	workers, err := repo.GetActiveWorkers(factoryID)
	if err != nil {
		return err
	}
	if len(workers) == 0 {
		return errors.New("该工厂没有在职工人")
	}

	skus, err := repo.GetAllSkuProfiles(factoryID)
	if err != nil {
		return err
	}
	if len(skus) == 0 {
		return errors.New("该工厂没有 SKU")
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitMQ.FeedbackQueue, true, false, false, false, nil); err != nil {
		return err
	}
	publisher := events.NewPublisher(ch, cfg.RabbitMQ.FeedbackQueue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	cnt := 0
	now := time.Now()
	for i := range n {
		w := workers[r.IntN(len(workers))]
		sku := skus[r.IntN(len(skus))]
		// 反馈时间均匀分布在最近 7 天内
		at := now.Add(-time.Duration(n-i) * 7 * 24 * time.Hour / time.Duration(n))

		fb := utils.GenerateRandomFeedback(r, w, sku.SkuCode, sku.EffectiveComplexity(), at)
		if err := publisher.PublishFeedback(fb); err != nil {
			logger.Error("无法发布产出反馈", "workerID", w.ID, "error", err)
			continue
		}
		cnt++
	}

	logger.Info("发布产出反馈成功", "count", cnt)
	return nil
}

func importRoster(registrar seed.WorkerRegistrar, file string, factoryID int64, logger *slog.Logger) error {
	if file == "" {
		return errors.New("未指定花名册文件")
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	workers, err := seed.ParseRoster(f, factoryID)
	if err != nil {
		return err
	}

	imported, skipped := seed.ImportWorkers(registrar, workers, logger)
	logger.Info("导入花名册完成", "imported", imported, "skipped", skipped)
	return nil
}

// seedBaseScores 为每个在职工人的每道工序写入一个随机基础分，技能越高分数越高
func seedBaseScores(cfg *config.Config, repo *repository.Repository, r *rand.Rand, factoryID int64, logger *slog.Logger) error {
	workers, err := repo.GetActiveWorkers(factoryID)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	store := cache.NewBaseScoreStore(rdb, cfg.Redis.BaseScorePrefix, time.Duration(cfg.Redis.OperationTimeout)*time.Second)

	cnt := 0
	for _, w := range workers {
		for _, taskType := range utils.ProcessTypes {
			score := max(0, min(1, 0.4+0.1*float64(w.SkillLevel)+r.NormFloat64()*0.05))
			if err := store.SetBaseScore(factoryID, w.ID, taskType, score, 0); err != nil {
				logger.Error("无法写入基础分", "workerID", w.ID, "taskType", taskType, "error", err)
				continue
			}
			cnt++
		}
	}

	logger.Info("写入基础分成功", "count", cnt)
	return nil
}
