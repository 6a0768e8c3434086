package domain

import "time"

// SchedulingConfig 是每个工厂唯一的调度配置，只有自适应调参器会修改它
type SchedulingConfig struct {
	FactoryID int64 `json:"factoryID"`

	AdaptiveEnabled   bool `json:"adaptiveEnabled"`
	FairnessEnabled   bool `json:"fairnessEnabled"`
	TempWorkerEnabled bool `json:"tempWorkerEnabled"`

	Weights          Weights `json:"weights"`
	ComplexityWeight float64 `json:"complexityWeight"`

	SkillDecayDays     int32 `json:"skillDecayDays"`
	TempSkillDecayDays int32 `json:"tempSkillDecayDays"`
	FairnessPeriodDays int32 `json:"fairnessPeriodDays"`
	MaxConsecutiveDays int32 `json:"maxConsecutiveDays"`

	TempBanditFactor   float64 `json:"tempBanditFactor"`
	TempFairnessFactor float64 `json:"tempFairnessFactor"`

	LearningRate            float64 `json:"learningRate"`
	EfficiencyTarget        float64 `json:"efficiencyTarget"`
	DiversityTarget         float64 `json:"diversityTarget"`
	MinSamplesForAdaptation int64   `json:"minSamplesForAdaptation"`
	AnomalyThreshold        float64 `json:"anomalyThreshold"`

	LastAdaptationAt *time.Time `json:"lastAdaptationAt"`
	AdaptationCount  int64      `json:"adaptationCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int32     `json:"-"`
}

// Weights 是打分函数的四个核心权重
type Weights struct {
	Bandit           float64 `json:"bandit"`
	Fairness         float64 `json:"fairness"`
	SkillMaintenance float64 `json:"skillMaintenance"`
	Repetition       float64 `json:"repetition"`
}

func (w Weights) Sum() float64 {
	return w.Bandit + w.Fairness + w.SkillMaintenance + w.Repetition
}

// Normalize 只在权重之和超过 1 时按比例缩小
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum <= 1 {
		return w
	}
	return Weights{
		Bandit:           w.Bandit / sum,
		Fairness:         w.Fairness / sum,
		SkillMaintenance: w.SkillMaintenance / sum,
		Repetition:       w.Repetition / sum,
	}
}
