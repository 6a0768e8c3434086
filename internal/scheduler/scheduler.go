package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	efficiencySmoothing    = 0.2
	defaultLogLimit        = 50
	maxStatsUpdateAttempts = 5
)

type Dependencies struct {
	Configs  ConfigStore
	Workers  WorkerStore
	Skus     SkuStore
	Feedback FeedbackStore
	Logs     AdaptationLogStore

	// 以下为可选依赖
	Queues     VirtualQueueStore
	BaseScorer BaseScorer
	Events     EventPublisher
	Metrics    MetricsRecorder
	Logger     *slog.Logger
	Now        func() time.Time

	// Defaults 生成新工厂的默认调度配置
	Defaults func(factoryID int64) *domain.SchedulingConfig
}

// Scheduler 组装调度核心的各个组件
type Scheduler struct {
	Router      *ComplexityRouter
	Fairness    *FairnessTracker
	Scorer      *FairBanditScorer
	Sku         *SkuComplexityModel
	TempWorkers *TempWorkerAdjuster
	Tuner       *AdaptiveConfigTuner
	Optimizer   *AssignmentOptimizer

	configs    *configProvider
	configDB   ConfigStore
	workers    WorkerStore
	feedback   FeedbackStore
	logs       AdaptationLogStore
	baseScorer BaseScorer
	metrics    MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time
}

func New(deps Dependencies) (*Scheduler, error) {
	switch {
	case deps.Configs == nil:
		return nil, errors.New("缺少调度配置存储")
	case deps.Workers == nil:
		return nil, errors.New("缺少工人存储")
	case deps.Skus == nil:
		return nil, errors.New("缺少 SKU 存储")
	case deps.Feedback == nil:
		return nil, errors.New("缺少产出反馈存储")
	case deps.Logs == nil:
		return nil, errors.New("缺少调参日志存储")
	case deps.Defaults == nil:
		return nil, errors.New("缺少默认调度配置")
	}

	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	registry := newStateRegistry(deps.Now)
	configs := &configProvider{
		store:    deps.Configs,
		registry: registry,
		defaults: deps.Defaults,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}

	fairness := &FairnessTracker{
		registry: registry,
		workers:  deps.Workers,
		feedback: deps.Feedback,
		queues:   deps.Queues,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	temp := &TempWorkerAdjuster{
		workers: deps.Workers,
		configs: configs,
		logger:  deps.Logger,
		now:     deps.Now,
	}

	return &Scheduler{
		Router:   NewComplexityRouter(),
		Fairness: fairness,
		Scorer: &FairBanditScorer{
			fairness:    fairness,
			configs:     configs,
			adjustments: temp,
			metrics:     deps.Metrics,
			logger:      deps.Logger,
		},
		Sku: &SkuComplexityModel{
			skus:     deps.Skus,
			feedback: deps.Feedback,
			workers:  deps.Workers,
			configs:  configs,
			metrics:  deps.Metrics,
			logger:   deps.Logger,
			now:      deps.Now,
		},
		TempWorkers: temp,
		Tuner: &AdaptiveConfigTuner{
			registry: registry,
			configs:  configs,
			store:    deps.Configs,
			feedback: deps.Feedback,
			logs:     deps.Logs,
			fairness: fairness,
			events:   deps.Events,
			metrics:  deps.Metrics,
			logger:   deps.Logger,
			now:      deps.Now,
		},
		Optimizer: NewAssignmentOptimizer(),

		configs:    configs,
		configDB:   deps.Configs,
		workers:    deps.Workers,
		feedback:   deps.Feedback,
		logs:       deps.Logs,
		baseScorer: deps.BaseScorer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
	}, nil
}

func (s *Scheduler) Config(factoryID int64) domain.SchedulingConfig {
	return s.configs.Get(factoryID)
}

func (s *Scheduler) AdaptationLogs(factoryID int64, limit int) ([]*domain.AdaptationLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return s.logs.GetAdaptationLogs(factoryID, limit)
}

// Schedule 先评估复杂度再按选出的档位排序候选工人。
// 升级到分层强化学习档位时不返回排序结果，由调用方转交外部实现。
func (s *Scheduler) Schedule(req *domain.ScheduleRequest) *domain.ScheduleResult {
	assessment := s.Router.Evaluate(req.FactoryID, req.Context)
	s.metrics.ObserveMode(assessment.RecommendedMode)

	result := &domain.ScheduleResult{
		Assessment: assessment,
		Mode:       assessment.RecommendedMode,
		Workers:    []domain.RankedWorker{},
	}

	switch assessment.RecommendedMode {
	case domain.ModeRuleBased:
		result.Workers = s.Optimizer.Optimize(req.FactoryID, req.RequiredCount, req.Candidates)
	case domain.ModeFairBandit:
		result.Workers = s.rankFair(req)
	case domain.ModeHierarchicalRL:
		s.logger.Info("调度复杂度过高，交由外部算法处理", "factoryID", req.FactoryID, "overall", assessment.OverallScore)
	}

	return result
}

// rankFair 是公平 bandit 档位的排序：公平分 + SKU 匹配分 + 临时工学习奖励
func (s *Scheduler) rankFair(req *domain.ScheduleRequest) []domain.RankedWorker {
	if req.RequiredCount <= 0 || len(req.Candidates) == 0 {
		return []domain.RankedWorker{}
	}

	ids := make([]int64, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		ids = append(ids, c.WorkerID)
	}
	s.Fairness.RegisterActiveWorkers(req.FactoryID, ids...)

	ranked := make([]domain.RankedWorker, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		base := s.baseScore(req.FactoryID, c, req.TaskType)

		detail := s.Scorer.Explain(req.FactoryID, c.WorkerID, req.TaskType, base)
		if req.SkuCode != "" {
			detail.MatchScore = s.Sku.MatchScore(req.FactoryID, c.WorkerID, req.SkuCode, int(c.SkillLevel))
		}

		ranked = append(ranked, domain.RankedWorker{
			WorkerID: c.WorkerID,
			Score:    detail.Total + detail.MatchScore + detail.LearningBonus,
			Detail:   &detail,
		})
	}

	return topN(ranked, req.RequiredCount)
}

// baseScore 优先使用外部估计器，不可用时退回候选自带的期望收益
func (s *Scheduler) baseScore(factoryID int64, c domain.Candidate, taskType string) float64 {
	if s.baseScorer == nil {
		return c.ExpectedReward
	}

	score, err := s.baseScorer.BaseScore(factoryID, c.WorkerID, taskType)
	if err != nil {
		s.logger.Warn("无法获取基础分，使用期望收益", "factoryID", factoryID, "workerID", c.WorkerID, "error", err)
		s.metrics.IncFallback("base_score")
		return c.ExpectedReward
	}
	return score
}

// RecordFeedback 记录一次分配的实际产出，并据此更新工人统计、虚拟队列和 SKU 复杂度
func (s *Scheduler) RecordFeedback(fb *domain.AllocationFeedback) error {
	if err := validateFeedback(fb); err != nil {
		return err
	}
	if fb.RecordedAt.IsZero() {
		fb.RecordedAt = s.now()
	}

	worker, err := s.workers.GetWorker(fb.FactoryID, fb.WorkerID)
	if err != nil {
		return err
	}

	if err := s.feedback.InsertFeedback(fb); err != nil {
		return fmt.Errorf("写入产出反馈失败: %w", err)
	}

	// 以下更新都可以从反馈中重建，失败时只记录日志
	if err := s.updateWorkerStats(worker, fb); err != nil {
		s.logger.Error("无法更新工人统计", "factoryID", fb.FactoryID, "workerID", fb.WorkerID, "error", err)
	}

	s.Fairness.UpdateVirtualQueue(fb.FactoryID, fb.WorkerID, true)

	if fb.SkuCode != "" {
		if _, err := s.Sku.LearnComplexity(fb.FactoryID, fb.SkuCode); err != nil {
			s.logger.Error("无法更新 SKU 复杂度", "factoryID", fb.FactoryID, "sku", fb.SkuCode, "error", err)
		}
	}

	if err := s.Fairness.Checkpoint(fb.FactoryID); err != nil {
		s.logger.Error("无法保存虚拟队列快照", "factoryID", fb.FactoryID, "error", err)
	}

	return nil
}

// updateWorkerStats 遇到版本冲突时重新读取工人并重新累加，避免并发反馈互相覆盖
func (s *Scheduler) updateWorkerStats(worker *domain.Worker, fb *domain.AllocationFeedback) error {
	for attempt := 1; ; attempt++ {
		updated := updateRollingStats(*worker, fb)
		err := s.workers.UpdateWorker(&updated)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) || attempt == maxStatsUpdateAttempts {
			return err
		}

		worker, err = s.workers.GetWorker(fb.FactoryID, fb.WorkerID)
		if err != nil {
			return err
		}
	}
}

func validateFeedback(fb *domain.AllocationFeedback) error {
	switch {
	case fb.FactoryID <= 0 || fb.WorkerID <= 0:
		return fmt.Errorf("%w: 缺少工厂或工人", domain.ErrInvalidFeedback)
	case fb.TaskType == "":
		return fmt.Errorf("%w: 缺少工序类型", domain.ErrInvalidFeedback)
	case math.IsNaN(fb.Efficiency) || fb.Efficiency < 0:
		return fmt.Errorf("%w: 效率不能为负数", domain.ErrInvalidFeedback)
	}
	return nil
}

// updateRollingStats 效率使用指数移动平均，可靠性使用算术平均的完成率
func updateRollingStats(w domain.Worker, fb *domain.AllocationFeedback) domain.Worker {
	n := float64(w.TotalAssignments)

	if w.TotalAssignments == 0 {
		w.AvgEfficiency = fb.Efficiency
	} else {
		w.AvgEfficiency = (1-efficiencySmoothing)*w.AvgEfficiency + efficiencySmoothing*fb.Efficiency
	}

	completed := 0.0
	if fb.Completed {
		completed = 1
	}
	w.ReliabilityScore = (w.ReliabilityScore*n + completed) / (n + 1)
	w.TotalAssignments++

	return w
}

// AdaptAll 对所有已知工厂依次执行自适应调参，单个工厂失败不影响其他工厂
func (s *Scheduler) AdaptAll() error {
	factoryIDs, err := s.configDB.GetAllFactoryIDs()
	if err != nil {
		return fmt.Errorf("读取工厂列表失败: %w", err)
	}

	var errs []error
	for _, id := range factoryIDs {
		if err := s.Tuner.PerformAdaptiveLearning(id); err != nil {
			s.logger.Error("自适应调参失败", "factoryID", id, "error", err)
			errs = append(errs, fmt.Errorf("工厂 %d: %w", id, err))
		}
	}

	return errors.Join(errs...)
}
