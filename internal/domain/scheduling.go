package domain

type Mode string

const (
	ModeRuleBased      Mode = "rule_based"
	ModeFairBandit     Mode = "fair_bandit"
	ModeHierarchicalRL Mode = "hierarchical_rl"
)

// SchedulingContext 是一次调度请求时车间状态的快照
type SchedulingContext struct {
	AvailableWorkers   int     `json:"availableWorkers" validate:"min=0"`
	TempWorkers        int     `json:"tempWorkers" validate:"min=0,ltefield=AvailableWorkers"`
	PendingTasks       int     `json:"pendingTasks" validate:"min=0"`
	ProcessTypes       int     `json:"processTypes" validate:"min=0"`
	HasSkuConstraints  bool    `json:"hasSkuConstraints"`
	HasTimeConstraints bool    `json:"hasTimeConstraints"`
	UrgentTaskRatio    float64 `json:"urgentTaskRatio" validate:"min=0,max=1"`
}

func (c SchedulingContext) TempWorkerRatio() float64 {
	if c.AvailableWorkers <= 0 {
		return 0
	}
	return float64(c.TempWorkers) / float64(c.AvailableWorkers)
}

type ComplexityScores struct {
	Worker     float64 `json:"worker"`
	Task       float64 `json:"task"`
	Constraint float64 `json:"constraint"`
	Dynamism   float64 `json:"dynamism"`
}

type ComplexityAssessment struct {
	FactoryID       int64            `json:"factoryID"`
	Scores          ComplexityScores `json:"scores"`
	OverallScore    float64          `json:"overallScore"`
	RecommendedMode Mode             `json:"recommendedMode"`
	Explanation     string           `json:"explanation"`
}

// Candidate 是参与排序的候选工人
type Candidate struct {
	WorkerID              int64   `json:"workerID" validate:"required"`
	ExpectedReward        float64 `json:"expectedReward"`
	HistoricalAssignments int64   `json:"historicalAssignments" validate:"min=0"`
	SkillLevel            int32   `json:"skillLevel" validate:"min=0,max=5"`
}

type RankedWorker struct {
	WorkerID int64           `json:"workerID"`
	Score    float64         `json:"score"`
	Rank     int             `json:"rank"`
	Detail   *ScoreBreakdown `json:"detail,omitempty"`
}

type ScheduleRequest struct {
	FactoryID     int64             `json:"factoryID"`
	TaskType      string            `json:"taskType"`
	SkuCode       string            `json:"skuCode"`
	RequiredCount int               `json:"requiredCount"`
	Context       SchedulingContext `json:"context"`
	Candidates    []Candidate       `json:"candidates"`
}

type ScheduleResult struct {
	Assessment ComplexityAssessment `json:"assessment"`
	Mode       Mode                 `json:"mode"`
	Workers    []RankedWorker       `json:"workers"`
}
