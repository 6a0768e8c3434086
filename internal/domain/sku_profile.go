package domain

import (
	"math"
	"time"
)

const (
	MinComplexity     = 1
	MaxComplexity     = 5
	DefaultComplexity = 3
)

type SkuProfile struct {
	FactoryID         int64     `json:"factoryID"`
	SkuCode           string    `json:"skuCode"`
	ManualComplexity  *int32    `json:"manualComplexity"`
	LearnedComplexity *float64  `json:"learnedComplexity"`
	SampleCount       int64     `json:"sampleCount"`
	AvgEfficiency     float64   `json:"avgEfficiency"`
	FailureRate       float64   `json:"failureRate"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// EffectiveComplexity 优先使用人工设定的复杂度，其次使用学习到的复杂度
func (p *SkuProfile) EffectiveComplexity() int {
	level := DefaultComplexity
	switch {
	case p.ManualComplexity != nil:
		level = int(*p.ManualComplexity)
	case p.LearnedComplexity != nil:
		level = int(math.Round(*p.LearnedComplexity))
	}
	return ClampComplexity(level)
}

func (p *SkuProfile) MinSkillRequired() int {
	return RequiredSkill(p.EffectiveComplexity())
}

func ClampComplexity(level int) int {
	return max(MinComplexity, min(MaxComplexity, level))
}

var complexitySkillMap = map[int]int{1: 1, 2: 1, 3: 2, 4: 3, 5: 4}

// RequiredSkill 将复杂度映射到最低技能等级，单调不减
func RequiredSkill(complexity int) int {
	return complexitySkillMap[ClampComplexity(complexity)]
}

type DriftSeverity string

const (
	DriftWarning  DriftSeverity = "warning"
	DriftCritical DriftSeverity = "critical"
)

type ComplexityDrift struct {
	SkuCode           string        `json:"skuCode"`
	ManualComplexity  int32         `json:"manualComplexity"`
	LearnedComplexity float64       `json:"learnedComplexity"`
	Drift             float64       `json:"drift"`
	SampleCount       int64         `json:"sampleCount"`
	Severity          DriftSeverity `json:"severity"`
	Recommendation    string        `json:"recommendation"`
}

// SkuStats 是某个 SKU 在时间窗口内的产出统计
type SkuStats struct {
	AvgEfficiency float64
	StdDev        float64
	SampleCount   int64
	FailureRate   float64
}
