package domain

type VirtualQueueEntry struct {
	FactoryID         int64   `json:"factoryID"`
	WorkerID          int64   `json:"workerID"`
	Debt              float64 `json:"debt"`
	PeriodAssignments int64   `json:"periodAssignments"`
}

type FairnessViolation struct {
	WorkerID    int64   `json:"workerID"`
	Assignments int64   `json:"assignments"`
	ActualRatio float64 `json:"actualRatio"`
	TargetRatio float64 `json:"targetRatio"`
	Severity    float64 `json:"severity"`
}

type WorkerFairness struct {
	WorkerID    int64   `json:"workerID"`
	Assignments int64   `json:"assignments"`
	Ratio       float64 `json:"ratio"`
	Debt        float64 `json:"debt"`
}

type FairnessStats struct {
	FactoryID        int64            `json:"factoryID"`
	WorkerCount      int              `json:"workerCount"`
	TotalAssignments int64            `json:"totalAssignments"`
	GiniCoefficient  float64          `json:"giniCoefficient"`
	MinRatio         float64          `json:"minRatio"`
	MaxRatio         float64          `json:"maxRatio"`
	PerWorker        []WorkerFairness `json:"perWorker"`
}

// ScoreBreakdown 记录公平 bandit 打分的每一项，便于排查
type ScoreBreakdown struct {
	WorkerID         int64   `json:"workerID"`
	BaseScore        float64 `json:"baseScore"`
	BanditFactor     float64 `json:"banditFactor"`
	FairnessWeight   float64 `json:"fairnessWeight"`
	FairnessBonus    float64 `json:"fairnessBonus"`
	VirtualQueue     float64 `json:"virtualQueue"`
	ExplorationBonus float64 `json:"explorationBonus"`
	Total            float64 `json:"total"`
	LearningBonus    float64 `json:"learningBonus"`
	MatchScore       float64 `json:"matchScore"`
}
