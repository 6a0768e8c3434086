package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	learningWindowDays   = 30
	minLearningSamples   = 10
	neutralComplexity    = 3.0
	minDriftSamples      = 20
	driftWarnThreshold   = 1.0
	driftStrongThreshold = 2.0

	bestFitBonus         = 0.05
	overQualifiedPenalty = 0.03
	trainingFactor       = 0.8
	mismatchFactor       = 0.5
)

// SkuComplexityModel 维护每个 SKU 的复杂度画像（人工设定 + 从产出中学习）
type SkuComplexityModel struct {
	skus     SkuStore
	feedback FeedbackStore
	workers  WorkerStore
	configs  *configProvider
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func (m *SkuComplexityModel) GetProfile(factoryID int64, skuCode string) (*domain.SkuProfile, error) {
	return m.skus.GetSkuProfile(factoryID, skuCode)
}

// GetComplexity 返回 SKU 的有效复杂度，没有画像或读取失败时返回 3
func (m *SkuComplexityModel) GetComplexity(factoryID int64, skuCode string) int {
	profile, err := m.skus.GetSkuProfile(factoryID, skuCode)
	if err != nil {
		if !errors.Is(err, domain.ErrSkuNotFound) {
			m.logger.Warn("无法读取 SKU 画像，使用默认复杂度", "factoryID", factoryID, "sku", skuCode, "error", err)
			m.metrics.IncFallback("sku_complexity")
		}
		return domain.DefaultComplexity
	}
	return profile.EffectiveComplexity()
}

// SetComplexity 设置人工复杂度，会覆盖学习到的结果
func (m *SkuComplexityModel) SetComplexity(factoryID int64, skuCode string, level int) (*domain.SkuProfile, error) {
	if level < domain.MinComplexity || level > domain.MaxComplexity {
		return nil, domain.ErrInvalidComplexity
	}

	if err := m.skus.SetManualComplexity(factoryID, skuCode, int32(level), m.now()); err != nil {
		return nil, err
	}
	return m.skus.GetSkuProfile(factoryID, skuCode)
}

// LearnComplexity 从最近 30 天的产出统计中估计复杂度。
// 样本不足 10 个时返回中性值 3.0，且不覆盖已有的估计。
func (m *SkuComplexityModel) LearnComplexity(factoryID int64, skuCode string) (float64, error) {
	since := m.now().AddDate(0, 0, -learningWindowDays)
	stats, err := m.feedback.SkuStatsSince(factoryID, skuCode, since)
	if err != nil {
		return neutralComplexity, fmt.Errorf("读取 SKU %s 的产出统计失败: %w", skuCode, err)
	}

	if stats.SampleCount < minLearningSamples {
		m.logger.Debug("SKU 样本不足，跳过学习", "factoryID", factoryID, "sku", skuCode, "samples", stats.SampleCount)
		return neutralComplexity, nil
	}

	learned := learnedComplexity(stats.AvgEfficiency, stats.StdDev)

	// 只写学习相关的列，并发的人工设定不会被覆盖
	profile := &domain.SkuProfile{
		FactoryID:         factoryID,
		SkuCode:           skuCode,
		LearnedComplexity: &learned,
		SampleCount:       stats.SampleCount,
		AvgEfficiency:     stats.AvgEfficiency,
		FailureRate:       stats.FailureRate,
		UpdatedAt:         m.now(),
	}
	if err := m.skus.UpdateLearnedComplexity(profile); err != nil {
		return learned, err
	}

	return learned, nil
}

// learnedComplexity 效率越低、波动越大，表现出的复杂度越高
func learnedComplexity(avgEfficiency, stdDev float64) float64 {
	return clamp((1-avgEfficiency)*5+stdDev*10, domain.MinComplexity, domain.MaxComplexity)
}

// MatchScore 衡量工人技能与 SKU 复杂度的匹配程度
func (m *SkuComplexityModel) MatchScore(factoryID, workerID int64, skuCode string, skillLevel int) float64 {
	complexity := m.GetComplexity(factoryID, skuCode)
	weight := m.configs.Get(factoryID).ComplexityWeight

	// 只有技能不足且可能是培训机会时才需要知道是否为临时工
	temporary := false
	if skillLevel < domain.RequiredSkill(complexity) && complexity <= 2 {
		worker, err := m.workers.GetWorker(factoryID, workerID)
		if err != nil {
			m.logger.Warn("无法读取工人信息，按正式工计算匹配度", "factoryID", factoryID, "workerID", workerID, "error", err)
			m.metrics.IncFallback("match_score")
		} else {
			temporary = worker.IsTemporary()
		}
	}

	return matchScore(complexity, skillLevel, temporary, weight)
}

func matchScore(complexity, skillLevel int, temporary bool, weight float64) float64 {
	required := domain.RequiredSkill(complexity)
	gap := skillLevel - required

	switch {
	case gap >= 0:
		score := weight
		if gap == 1 {
			score += bestFitBonus
		} else if gap > 2 {
			score -= overQualifiedPenalty
		}
		return score
	case temporary && complexity <= 2:
		// 低复杂度任务是临时工的培训机会
		return trainingFactor * weight
	default:
		return -weight * float64(-gap) * mismatchFactor
	}
}

// DetectComplexityDrift 找出人工复杂度与学习结果偏差过大的 SKU。
// 样本不足 20 个的 SKU 不参与检测。
func (m *SkuComplexityModel) DetectComplexityDrift(factoryID int64) ([]domain.ComplexityDrift, error) {
	profiles, err := m.skus.GetAllSkuProfiles(factoryID)
	if err != nil {
		return nil, err
	}

	drifts := make([]domain.ComplexityDrift, 0)
	for _, p := range profiles {
		if p.SampleCount < minDriftSamples || p.ManualComplexity == nil || p.LearnedComplexity == nil {
			continue
		}

		drift := math.Abs(float64(*p.ManualComplexity) - *p.LearnedComplexity)
		if drift < driftWarnThreshold {
			continue
		}

		d := domain.ComplexityDrift{
			SkuCode:           p.SkuCode,
			ManualComplexity:  *p.ManualComplexity,
			LearnedComplexity: *p.LearnedComplexity,
			Drift:             drift,
			SampleCount:       p.SampleCount,
			Severity:          domain.DriftWarning,
			Recommendation:    "人工复杂度与实际表现存在偏差，建议复核",
		}
		if drift >= driftStrongThreshold {
			d.Severity = domain.DriftCritical
			d.Recommendation = fmt.Sprintf("人工复杂度已明显过时，建议调整为 %d", domain.ClampComplexity(int(math.Round(*p.LearnedComplexity))))
		}
		drifts = append(drifts, d)
	}

	slices.SortFunc(drifts, func(a, b domain.ComplexityDrift) int {
		if c := cmp.Compare(b.Drift, a.Drift); c != 0 {
			return c
		}
		return cmp.Compare(a.SkuCode, b.SkuCode)
	})

	return drifts, nil
}
