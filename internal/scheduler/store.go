package scheduler

import (
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// 以下接口由 repository、cache、events、metrics 等包实现，
// 调度核心只依赖这些接口，测试时可以用内存实现替换

type ConfigStore interface {
	GetSchedulingConfig(factoryID int64) (*domain.SchedulingConfig, error)
	CreateSchedulingConfig(cfg *domain.SchedulingConfig) error
	UpdateSchedulingConfig(cfg *domain.SchedulingConfig) error
	GetAllFactoryIDs() ([]int64, error)
}

type WorkerStore interface {
	GetWorker(factoryID, workerID int64) (*domain.Worker, error)
	GetWorkerByCode(factoryID int64, code string) (*domain.Worker, error)
	GetActiveWorkers(factoryID int64) ([]*domain.Worker, error)
	CreateWorker(worker *domain.Worker) error
	UpdateWorker(worker *domain.Worker) error
}

// SkuStore 的两个写方法各自只修改自己负责的列，人工设定和学习结果互不覆盖
type SkuStore interface {
	GetSkuProfile(factoryID int64, skuCode string) (*domain.SkuProfile, error)
	GetAllSkuProfiles(factoryID int64) ([]*domain.SkuProfile, error)
	SetManualComplexity(factoryID int64, skuCode string, level int32, updatedAt time.Time) error
	UpdateLearnedComplexity(profile *domain.SkuProfile) error
}

// FeedbackStore 是产出反馈的追加写入和时间窗口聚合查询
type FeedbackStore interface {
	InsertFeedback(fb *domain.AllocationFeedback) error
	CountFeedbackSince(factoryID int64, since time.Time) (int64, error)
	AverageEfficiencySince(factoryID int64, since time.Time) (avg float64, count int64, err error)
	StageCountsSince(factoryID int64, since time.Time) (map[string]int64, error)
	WorkerAssignmentCountsSince(factoryID int64, since time.Time) (map[int64]int64, error)
	SkuStatsSince(factoryID int64, skuCode string, since time.Time) (*domain.SkuStats, error)
}

type AdaptationLogStore interface {
	InsertAdaptationLog(entry *domain.AdaptationLog) error
	GetAdaptationLogs(factoryID int64, limit int) ([]*domain.AdaptationLog, error)
}

// VirtualQueueStore 保存虚拟队列快照，丢失后可以从反馈中重建
type VirtualQueueStore interface {
	GetVirtualQueue(factoryID int64) ([]domain.VirtualQueueEntry, error)
	ReplaceVirtualQueue(factoryID int64, entries []domain.VirtualQueueEntry) error
}

// BaseScorer 提供外部上下文估计器（如 LinUCB）给出的基础分
type BaseScorer interface {
	BaseScore(factoryID, workerID int64, taskType string) (float64, error)
}

type EventPublisher interface {
	Publish(event *domain.SchedulerEvent) error
}

type MetricsRecorder interface {
	ObserveMode(mode domain.Mode)
	IncAdaptation(factoryID int64, kind domain.AdaptationKind)
	IncAnomaly(factoryID int64)
	IncFallback(component string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*domain.SchedulerEvent) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveMode(domain.Mode) {}

func (nopMetrics) IncAdaptation(int64, domain.AdaptationKind) {}

func (nopMetrics) IncAnomaly(int64) {}

func (nopMetrics) IncFallback(string) {}
