package scheduler

import (
	"cmp"
	"math"
	"slices"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// explorationAlpha 是 UCB 的探索系数
const explorationAlpha = 0.5

// AssignmentOptimizer 用 UCB 对候选工人做简单的探索/利用排序
type AssignmentOptimizer struct{}

func NewAssignmentOptimizer() *AssignmentOptimizer {
	return &AssignmentOptimizer{}
}

// Optimize 返回 UCB 分数最高的 requiredCount 个工人
func (o *AssignmentOptimizer) Optimize(factoryID int64, requiredCount int, candidates []domain.Candidate) []domain.RankedWorker {
	if requiredCount <= 0 || len(candidates) == 0 {
		return []domain.RankedWorker{}
	}

	ranked := make([]domain.RankedWorker, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, domain.RankedWorker{
			WorkerID: c.WorkerID,
			Score:    ucbScore(c.ExpectedReward, c.HistoricalAssignments),
		})
	}

	return topN(ranked, requiredCount)
}

func ucbScore(expectedReward float64, history int64) float64 {
	uncertainty := 1 / math.Sqrt(float64(max(0, history))+1)
	return expectedReward + explorationAlpha*uncertainty
}

// topN 按分数降序排序（同分按工人 ID 升序），并写入名次
func topN(ranked []domain.RankedWorker, n int) []domain.RankedWorker {
	slices.SortStableFunc(ranked, func(a, b domain.RankedWorker) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.WorkerID, b.WorkerID)
	})

	ranked = ranked[:min(n, len(ranked))]
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
