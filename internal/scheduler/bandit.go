package scheduler

import (
	"log/slog"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	queueWeight       = 0.1
	explorationWeight = 0.1
)

// AdjustmentSource 提供针对单个工人的打分修正系数
type AdjustmentSource interface {
	CalculateAdjustment(factoryID, workerID int64) (*domain.Adjustment, error)
}

// FairBanditScorer 把外部基础分与公平奖励、虚拟队列欠账和探索奖励合成最终分数。
// 打分只读取共享状态，不做任何修改，可以在排序时反复调用。
type FairBanditScorer struct {
	fairness    *FairnessTracker
	configs     *configProvider
	adjustments AdjustmentSource
	metrics     MetricsRecorder
	logger      *slog.Logger
}

func (s *FairBanditScorer) Score(factoryID, workerID int64, taskType string, baseScore float64) float64 {
	return s.Explain(factoryID, workerID, taskType, baseScore).Total
}

// Explain 返回打分的每一项明细
//
//	fairScore = baseScore*banditFactor + fairnessWeight*fairnessFactor*fairnessBonus
//	          + 0.1*virtualQueue + 0.1*explorationBonus
func (s *FairBanditScorer) Explain(factoryID, workerID int64, taskType string, baseScore float64) domain.ScoreBreakdown {
	cfg := s.configs.Get(factoryID)
	adj := s.adjustment(cfg, factoryID, workerID)

	b := domain.ScoreBreakdown{
		WorkerID:       workerID,
		BaseScore:      baseScore,
		BanditFactor:   adj.BanditFactor,
		FairnessWeight: cfg.Weights.Fairness * adj.FairnessFactor,
		LearningBonus:  adj.LearningBonus,
	}

	if !cfg.FairnessEnabled {
		b.FairnessWeight = 0
		b.Total = baseScore * adj.BanditFactor
		return b
	}

	v := s.fairness.scoringView(factoryID, workerID)
	actual := v.actualRatio()

	b.FairnessBonus = max(0, v.targetRatio()-actual)
	b.VirtualQueue = v.debt
	if v.count == 0 {
		b.ExplorationBonus = 1.0
	} else {
		b.ExplorationBonus = max(0, 1-2*actual)
	}

	b.Total = baseScore*b.BanditFactor +
		b.FairnessWeight*b.FairnessBonus +
		queueWeight*b.VirtualQueue +
		explorationWeight*b.ExplorationBonus

	return b
}

func (s *FairBanditScorer) adjustment(cfg domain.SchedulingConfig, factoryID, workerID int64) *domain.Adjustment {
	neutral := &domain.Adjustment{
		WorkerID:           workerID,
		BanditFactor:       1.0,
		FairnessFactor:     1.0,
		SkillDecayDays:     cfg.SkillDecayDays,
		MaxConsecutiveDays: cfg.MaxConsecutiveDays,
	}
	if !cfg.TempWorkerEnabled || s.adjustments == nil {
		return neutral
	}

	adj, err := s.adjustments.CalculateAdjustment(factoryID, workerID)
	if err != nil {
		// 打分必须保持可用，查询失败时按正式工处理
		s.logger.Warn("无法计算工人修正系数，使用中性系数", "factoryID", factoryID, "workerID", workerID, "error", err)
		s.metrics.IncFallback("adjustment")
		return neutral
	}
	return adj
}
