package scheduler

import (
	"fmt"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	workerLowThreshold = 10
	workerMidThreshold = 50
	taskLowThreshold   = 20
	taskMidThreshold   = 100

	ruleBasedCeiling  = 0.30
	fairBanditCeiling = 0.65
)

// ComplexityRouter 根据车间状态的复杂度选择调度算法档位
type ComplexityRouter struct{}

func NewComplexityRouter() *ComplexityRouter {
	return &ComplexityRouter{}
}

func (r *ComplexityRouter) Evaluate(factoryID int64, sc domain.SchedulingContext) domain.ComplexityAssessment {
	tempRatio := sc.TempWorkerRatio()
	urgentRatio := clamp(sc.UrgentTaskRatio, 0, 1)

	scores := domain.ComplexityScores{
		Worker:     workerComplexity(sc.AvailableWorkers, tempRatio),
		Task:       taskComplexity(sc.PendingTasks, sc.ProcessTypes),
		Constraint: constraintComplexity(sc.HasSkuConstraints, sc.HasTimeConstraints, urgentRatio),
		Dynamism:   0.5*tempRatio + 0.5*urgentRatio,
	}

	overall := 0.30*scores.Worker + 0.30*scores.Task + 0.25*scores.Constraint + 0.15*scores.Dynamism
	mode := routeMode(overall)

	return domain.ComplexityAssessment{
		FactoryID:       factoryID,
		Scores:          scores,
		OverallScore:    overall,
		RecommendedMode: mode,
		Explanation: fmt.Sprintf(
			"worker=%.2f task=%.2f constraint=%.2f dynamism=%.2f overall=%.2f mode=%s",
			scores.Worker, scores.Task, scores.Constraint, scores.Dynamism, overall, mode,
		),
	}
}

func routeMode(overall float64) domain.Mode {
	switch {
	case overall < ruleBasedCeiling:
		return domain.ModeRuleBased
	case overall < fairBanditCeiling:
		return domain.ModeFairBandit
	default:
		return domain.ModeHierarchicalRL
	}
}

// rampScore 是三段线性函数：低于 low 时为 0.2，[low, mid) 从 0.2 升到 0.6，
// mid 之后继续线性上升，在 2*mid 处到达 1.0
func rampScore(n, low, mid int) float64 {
	switch {
	case n < low:
		return 0.2
	case n < mid:
		return 0.2 + 0.4*float64(n-low)/float64(mid-low)
	default:
		return min(1.0, 0.6+0.4*float64(n-mid)/float64(mid))
	}
}

func workerComplexity(workers int, tempRatio float64) float64 {
	score := rampScore(workers, workerLowThreshold, workerMidThreshold)
	if tempRatio > 0.3 {
		score = min(1.0, score+0.15)
	}
	return score
}

func taskComplexity(tasks, processTypes int) float64 {
	score := rampScore(tasks, taskLowThreshold, taskMidThreshold)
	if processTypes > 5 {
		score = min(1.0, score+0.1)
	}
	return score
}

func constraintComplexity(sku, timeWindow bool, urgentRatio float64) float64 {
	score := 0.0
	if sku {
		score += 0.3
	}
	if timeWindow {
		score += 0.3
	}
	if urgentRatio > 0.3 {
		score += 0.2
	}
	return min(1.0, score)
}
