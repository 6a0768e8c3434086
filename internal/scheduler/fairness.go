package scheduler

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	debtDecay            = 0.95
	assignmentRelief     = 1.0
	violationRatioFactor = 0.7
	defaultViolationDays = 7
)

// FairnessTracker 维护每个工厂的虚拟队列（公平性欠账）和本周期的分配计数
type FairnessTracker struct {
	registry *stateRegistry
	workers  WorkerStore
	feedback FeedbackStore
	queues   VirtualQueueStore // 可以为 nil
	metrics  MetricsRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// state 返回工厂状态，第一次访问时尝试从快照中恢复虚拟队列
func (t *FairnessTracker) state(factoryID int64) *factoryState {
	st := t.registry.get(factoryID)
	st.warm.Do(func() {
		if t.queues == nil {
			return
		}

		entries, err := t.queues.GetVirtualQueue(factoryID)
		if err != nil {
			t.logger.Warn("无法读取虚拟队列快照，从空队列开始", "factoryID", factoryID, "error", err)
			t.metrics.IncFallback("virtual_queue")
			return
		}

		st.mu.Lock()
		defer st.mu.Unlock()
		for _, e := range entries {
			st.debts[e.WorkerID] = max(0, e.Debt)
			st.counts[e.WorkerID] = e.PeriodAssignments
			st.total += e.PeriodAssignments
			st.active[e.WorkerID] = struct{}{}
		}
	})
	return st
}

// activeWorkerIDs 从存储中读取在岗工人，失败时返回 false，由调用方沿用已知集合
func (t *FairnessTracker) activeWorkerIDs(factoryID int64) ([]int64, bool) {
	workers, err := t.workers.GetActiveWorkers(factoryID)
	if err != nil {
		t.logger.Warn("无法读取在岗工人，沿用已知工人集合", "factoryID", factoryID, "error", err)
		t.metrics.IncFallback("active_workers")
		return nil, false
	}

	ids := make([]int64, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}
	return ids, true
}

// UpdateVirtualQueue 在每次分配事件后更新所有在岗工人的欠账：
// 被分配的工人欠账减 1（不低于 0），其余工人欠账衰减后加上目标比例
func (t *FairnessTracker) UpdateVirtualQueue(factoryID, workerID int64, wasAssigned bool) {
	ids, fresh := t.activeWorkerIDs(factoryID)
	st := t.state(factoryID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if fresh {
		active := make(map[int64]struct{}, len(ids)+1)
		for _, id := range ids {
			active[id] = struct{}{}
		}
		// 已离岗工人的欠账不再累积
		for id := range st.debts {
			if _, ok := active[id]; !ok {
				delete(st.debts, id)
			}
		}
		st.active = active
		st.seeded = true
	}
	st.active[workerID] = struct{}{}

	target := 1 / float64(len(st.active))
	for id := range st.active {
		if id == workerID && wasAssigned {
			st.debts[id] = max(0, st.debts[id]-assignmentRelief)
			st.counts[id]++
			st.total++
			continue
		}
		st.debts[id] = st.debts[id]*debtDecay + target
	}
}

// seedActive 在岗集合从未与存储同步过时从存储中补齐，读取失败时沿用已知集合，下次再试
func (t *FairnessTracker) seedActive(factoryID int64, st *factoryState) {
	st.mu.RLock()
	seeded := st.seeded
	st.mu.RUnlock()
	if seeded {
		return
	}

	ids, ok := t.activeWorkerIDs(factoryID)
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range ids {
		st.active[id] = struct{}{}
	}
	st.seeded = true
}

// scoringView 返回打分用的一致快照，读取前会恢复虚拟队列快照并补齐在岗集合
func (t *FairnessTracker) scoringView(factoryID, workerID int64) fairnessView {
	st := t.state(factoryID)
	t.seedActive(factoryID, st)
	return st.view(workerID)
}

// RegisterActiveWorkers 把工人加入本周期的在岗集合，不改变欠账
func (t *FairnessTracker) RegisterActiveWorkers(factoryID int64, workerIDs ...int64) {
	st := t.state(factoryID)

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range workerIDs {
		st.active[id] = struct{}{}
	}
}

func (t *FairnessTracker) VirtualQueueLength(factoryID, workerID int64) float64 {
	return t.state(factoryID).view(workerID).debt
}

// DetectFairnessViolations 统计最近 days 天的分配，找出实际比例低于目标比例 70% 的工人
func (t *FairnessTracker) DetectFairnessViolations(factoryID int64, days int) []domain.FairnessViolation {
	if days <= 0 {
		days = defaultViolationDays
	}

	ids, fresh := t.activeWorkerIDs(factoryID)
	st := t.state(factoryID)

	since := t.now().AddDate(0, 0, -days)
	counts, err := t.feedback.WorkerAssignmentCountsSince(factoryID, since)
	if err != nil {
		t.logger.Warn("无法读取分配统计，改用本周期计数", "factoryID", factoryID, "error", err)
		t.metrics.IncFallback("fairness_violations")
		counts = nil
	}

	st.mu.RLock()
	if !fresh {
		ids = make([]int64, 0, len(st.active))
		for id := range st.active {
			ids = append(ids, id)
		}
	}
	if counts == nil {
		counts = make(map[int64]int64, len(st.counts))
		for id, c := range st.counts {
			counts[id] = c
		}
	}
	st.mu.RUnlock()

	if len(ids) == 0 {
		return []domain.FairnessViolation{}
	}

	total := int64(0)
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return []domain.FairnessViolation{}
	}

	target := 1 / float64(len(ids))
	violations := make([]domain.FairnessViolation, 0)
	for _, id := range ids {
		actual := float64(counts[id]) / float64(total)
		if actual >= violationRatioFactor*target {
			continue
		}
		violations = append(violations, domain.FairnessViolation{
			WorkerID:    id,
			Assignments: counts[id],
			ActualRatio: actual,
			TargetRatio: target,
			Severity:    1 - actual/target,
		})
	}

	slices.SortFunc(violations, func(a, b domain.FairnessViolation) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		return cmp.Compare(a.WorkerID, b.WorkerID)
	})

	return violations
}

// GetFactoryFairnessStats 基于本周期的计数计算分配比例的最值和基尼系数
func (t *FairnessTracker) GetFactoryFairnessStats(factoryID int64) domain.FairnessStats {
	st := t.state(factoryID)

	st.mu.RLock()
	ids := make([]int64, 0, len(st.active))
	for id := range st.active {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		for id := range st.counts {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	stats := domain.FairnessStats{
		FactoryID:        factoryID,
		WorkerCount:      len(ids),
		TotalAssignments: st.total,
		PerWorker:        make([]domain.WorkerFairness, 0, len(ids)),
	}
	for _, id := range ids {
		ratio := 0.0
		if st.total > 0 {
			ratio = float64(st.counts[id]) / float64(st.total)
		}
		stats.PerWorker = append(stats.PerWorker, domain.WorkerFairness{
			WorkerID:    id,
			Assignments: st.counts[id],
			Ratio:       ratio,
			Debt:        st.debts[id],
		})
	}
	st.mu.RUnlock()

	if len(stats.PerWorker) == 0 {
		return stats
	}

	ratios := make([]float64, len(stats.PerWorker))
	stats.MinRatio = stats.PerWorker[0].Ratio
	stats.MaxRatio = stats.PerWorker[0].Ratio
	for i, w := range stats.PerWorker {
		ratios[i] = w.Ratio
		stats.MinRatio = min(stats.MinRatio, w.Ratio)
		stats.MaxRatio = max(stats.MaxRatio, w.Ratio)
	}
	stats.GiniCoefficient = gini(ratios)

	return stats
}

// ResetPeriod 清空欠账和计数，开始新的公平周期
func (t *FairnessTracker) ResetPeriod(factoryID int64) {
	st := t.state(factoryID)

	st.mu.Lock()
	defer st.mu.Unlock()

	clear(st.debts)
	clear(st.counts)
	st.total = 0
	st.periodStart = t.now()

	t.logger.Info("公平周期已重置", "factoryID", factoryID)
}

func (t *FairnessTracker) PeriodStart(factoryID int64) time.Time {
	st := t.state(factoryID)

	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.periodStart
}

func (t *FairnessTracker) Snapshot(factoryID int64) []domain.VirtualQueueEntry {
	st := t.state(factoryID)

	st.mu.RLock()
	entries := make([]domain.VirtualQueueEntry, 0, len(st.active))
	for id := range st.active {
		entries = append(entries, domain.VirtualQueueEntry{
			FactoryID:         factoryID,
			WorkerID:          id,
			Debt:              st.debts[id],
			PeriodAssignments: st.counts[id],
		})
	}
	st.mu.RUnlock()

	slices.SortFunc(entries, func(a, b domain.VirtualQueueEntry) int {
		return cmp.Compare(a.WorkerID, b.WorkerID)
	})
	return entries
}

// Checkpoint 把当前快照写入存储，写入在锁外进行
func (t *FairnessTracker) Checkpoint(factoryID int64) error {
	if t.queues == nil {
		return nil
	}
	return t.queues.ReplaceVirtualQueue(factoryID, t.Snapshot(factoryID))
}
