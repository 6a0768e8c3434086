package scheduler

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	adaptationWindowDays = 7
	anomalyWindowDays    = 1
	maxStepAdjustment    = 0.1

	// 两次权重调整之间的最短间隔，重复触发不会叠加步长
	adaptationCooldown = time.Hour

	maxBanditWeight           = 0.8
	minRepetitionWeight       = 0.05
	maxFairnessWeight         = 0.3
	maxSkillMaintenanceWeight = 0.3
)

// AdaptiveConfigTuner 根据最近的产出反馈调整工厂的打分权重
type AdaptiveConfigTuner struct {
	registry *stateRegistry
	configs  *configProvider
	store    ConfigStore
	feedback FeedbackStore
	logs     AdaptationLogStore
	fairness *FairnessTracker
	events   EventPublisher
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

type adaptationMetrics struct {
	samples    int64
	efficiency float64
	diversity  float64
}

// PerformAdaptiveLearning 执行一轮自适应调参。
// 未开启自适应或最近 7 天样本不足时不做任何事。
func (t *AdaptiveConfigTuner) PerformAdaptiveLearning(factoryID int64) error {
	cfg := t.configs.Get(factoryID)
	now := t.now()

	t.rollFairnessPeriod(factoryID, cfg, now)

	if !cfg.AdaptiveEnabled {
		return nil
	}

	// 统计数据必须在加写锁之前取到
	m, err := t.collect(factoryID, now)
	if err != nil {
		return err
	}
	if m.samples < cfg.MinSamplesForAdaptation {
		t.logger.Debug("样本不足，跳过自适应调参", "factoryID", factoryID, "samples", m.samples, "required", cfg.MinSamplesForAdaptation)
		return nil
	}

	if coolingDown(cfg, now) {
		t.logger.Debug("距离上次调参时间过短，跳过", "factoryID", factoryID, "lastAdaptationAt", cfg.LastAdaptationAt)
		return nil
	}

	t.detectAnomaly(factoryID, cfg, now)

	before, after, reasons, updated, cooling := t.apply(factoryID, cfg, m, now)
	if cooling {
		// 并发的另一轮调参已经抢先生效
		t.logger.Debug("距离上次调参时间过短，跳过", "factoryID", factoryID)
		return nil
	}

	reason := "效率与多样性均已达标"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "；") + "，权重已达上限"
	}

	entry := &domain.AdaptationLog{
		FactoryID:          factoryID,
		Kind:               domain.AdaptationSkipped,
		Reason:             reason,
		Before:             before,
		After:              after,
		EfficiencyMeasured: m.efficiency,
		DiversityMeasured:  m.diversity,
		SampleCount:        m.samples,
		CreatedAt:          now,
	}

	if updated != nil {
		entry.Kind = domain.AdaptationAdjusted
		entry.Reason = strings.Join(reasons, "；")

		if err := t.store.UpdateSchedulingConfig(updated); err != nil {
			// 内存中的配置已经生效，下一次调参时会再次写入
			t.logger.Error("无法保存调度配置", "factoryID", factoryID, "error", err)
		}
		t.publish(domain.EventAdaptation, factoryID, entry, now)
	}

	t.metrics.IncAdaptation(factoryID, entry.Kind)
	t.logger.Info("自适应调参完成",
		"factoryID", factoryID,
		"kind", entry.Kind,
		"efficiency", m.efficiency,
		"diversity", m.diversity,
		"before", before,
		"after", after,
	)

	if err := t.logs.InsertAdaptationLog(entry); err != nil {
		return fmt.Errorf("写入调参日志失败: %w", err)
	}
	return nil
}

func (t *AdaptiveConfigTuner) collect(factoryID int64, now time.Time) (adaptationMetrics, error) {
	since := now.AddDate(0, 0, -adaptationWindowDays)

	samples, err := t.feedback.CountFeedbackSince(factoryID, since)
	if err != nil {
		return adaptationMetrics{}, fmt.Errorf("统计反馈样本失败: %w", err)
	}

	m := adaptationMetrics{samples: samples}
	if samples == 0 {
		return m, nil
	}

	m.efficiency, _, err = t.feedback.AverageEfficiencySince(factoryID, since)
	if err != nil {
		return adaptationMetrics{}, fmt.Errorf("统计平均效率失败: %w", err)
	}

	stages, err := t.feedback.StageCountsSince(factoryID, since)
	if err != nil {
		return adaptationMetrics{}, fmt.Errorf("统计工序分布失败: %w", err)
	}
	m.diversity = normalizedEntropy(stages)

	return m, nil
}

// apply 在一个临界区内完成权重调整和归一化，打分时不会读到中间状态。
// 没有任何变化时 updated 为 nil，仍在冷却期内时 cooling 为 true。
func (t *AdaptiveConfigTuner) apply(factoryID int64, fallback domain.SchedulingConfig, m adaptationMetrics, now time.Time) (before, after domain.Weights, reasons []string, updated *domain.SchedulingConfig, cooling bool) {
	st := t.registry.get(factoryID)

	st.mu.Lock()
	defer st.mu.Unlock()

	current := fallback
	if st.cfg != nil {
		current = *st.cfg
	}

	before = current.Weights
	if coolingDown(current, now) {
		return before, before, nil, nil, true
	}

	after, reasons = adjustWeights(current, m.efficiency, m.diversity)
	if after == before {
		return before, after, reasons, nil, false
	}

	current.Weights = after
	current.LastAdaptationAt = &now
	current.AdaptationCount++
	current.UpdatedAt = now
	st.cfg = &current

	cfg := current
	return before, after, reasons, &cfg, false
}

func coolingDown(cfg domain.SchedulingConfig, now time.Time) bool {
	return cfg.LastAdaptationAt != nil && now.Sub(*cfg.LastAdaptationAt) < adaptationCooldown
}

// adjustWeights 是纯函数：效率低于目标时提高 bandit 权重并降低重复权重，
// 多样性低于目标时提高公平和技能维持权重，最后保证权重之和不超过 1
func adjustWeights(cfg domain.SchedulingConfig, efficiency, diversity float64) (domain.Weights, []string) {
	w := cfg.Weights
	reasons := make([]string, 0, 2)

	if efficiency < cfg.EfficiencyTarget {
		adj := min(cfg.LearningRate*(cfg.EfficiencyTarget-efficiency), maxStepAdjustment)
		w.Bandit = min(maxBanditWeight, w.Bandit+adj)
		w.Repetition = max(minRepetitionWeight, w.Repetition-adj/2)
		reasons = append(reasons, fmt.Sprintf("效率 %.3f 低于目标 %.3f", efficiency, cfg.EfficiencyTarget))
	}

	if diversity < cfg.DiversityTarget {
		adj := min(cfg.LearningRate*(cfg.DiversityTarget-diversity), maxStepAdjustment)
		w.Fairness = min(maxFairnessWeight, w.Fairness+adj)
		w.SkillMaintenance = min(maxSkillMaintenanceWeight, w.SkillMaintenance+adj)
		reasons = append(reasons, fmt.Sprintf("多样性 %.3f 低于目标 %.3f", diversity, cfg.DiversityTarget))
	}

	return w.Normalize(), reasons
}

// detectAnomaly 最近一天的平均效率低于阈值时记录异常，不自动回滚
func (t *AdaptiveConfigTuner) detectAnomaly(factoryID int64, cfg domain.SchedulingConfig, now time.Time) {
	efficiency, samples, err := t.feedback.AverageEfficiencySince(factoryID, now.AddDate(0, 0, -anomalyWindowDays))
	if err != nil {
		t.logger.Warn("无法统计最近一天的效率，跳过异常检测", "factoryID", factoryID, "error", err)
		return
	}
	if samples == 0 || efficiency >= cfg.AnomalyThreshold {
		return
	}

	reason := fmt.Sprintf("最近一天平均效率 %.3f 低于异常阈值 %.3f", efficiency, cfg.AnomalyThreshold)
	t.logger.Warn("检测到效率异常", "factoryID", factoryID, "efficiency", efficiency, "threshold", cfg.AnomalyThreshold)
	t.metrics.IncAnomaly(factoryID)

	entry := &domain.AdaptationLog{
		FactoryID:          factoryID,
		Kind:               domain.AdaptationAnomaly,
		Reason:             reason,
		Before:             cfg.Weights,
		After:              cfg.Weights,
		EfficiencyMeasured: efficiency,
		SampleCount:        samples,
		CreatedAt:          now,
	}
	if err := t.logs.InsertAdaptationLog(entry); err != nil {
		t.logger.Error("无法写入异常日志", "factoryID", factoryID, "error", err)
	}

	t.publish(domain.EventAnomaly, factoryID, domain.AnomalyEventData{
		Efficiency: efficiency,
		Threshold:  cfg.AnomalyThreshold,
		Samples:    samples,
		Reason:     reason,
	}, now)
}

// rollFairnessPeriod 在公平周期结束时重置虚拟队列
func (t *AdaptiveConfigTuner) rollFairnessPeriod(factoryID int64, cfg domain.SchedulingConfig, now time.Time) {
	if cfg.FairnessPeriodDays <= 0 {
		return
	}
	periodEnd := t.fairness.PeriodStart(factoryID).AddDate(0, 0, int(cfg.FairnessPeriodDays))
	if now.Before(periodEnd) {
		return
	}
	t.fairness.ResetPeriod(factoryID)
}

func (t *AdaptiveConfigTuner) publish(eventType string, factoryID int64, data any, now time.Time) {
	err := t.events.Publish(&domain.SchedulerEvent{
		Type:       eventType,
		FactoryID:  factoryID,
		Data:       data,
		OccurredAt: now,
	})
	if err != nil {
		t.logger.Error("无法发布调度事件", "type", eventType, "factoryID", factoryID, "error", err)
	}
}
