package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

type stubBaseScorer struct {
	scores map[int64]float64
	err    error
}

func (s stubBaseScorer) BaseScore(_, workerID int64, _ string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	score, ok := s.scores[workerID]
	if !ok {
		return 0, errors.New("no estimate")
	}
	return score, nil
}

func TestNewRequiresStores(t *testing.T) {
	store := newMemStore()

	_, err := New(Dependencies{Configs: store, Workers: store, Skus: store, Feedback: store, Logs: store})
	assert.Error(t, err)

	_, err = New(Dependencies{Workers: store, Skus: store, Feedback: store, Logs: store, Defaults: testDefaults})
	assert.Error(t, err)

	s, err := New(Dependencies{Configs: store, Workers: store, Skus: store, Feedback: store, Logs: store, Defaults: testDefaults})
	require.NoError(t, err)
	assert.NotNil(t, s.Fairness)
}

func TestConfigIsCreatedLazily(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.GetSchedulingConfig(testFactory)
	require.ErrorIs(t, err, domain.ErrConfigNotFound)

	cfg := env.scheduler.Config(testFactory)
	assert.Equal(t, testFactory, cfg.FactoryID)

	stored, err := env.store.GetSchedulingConfig(testFactory)
	require.NoError(t, err)
	assert.Equal(t, cfg.Weights, stored.Weights)
}

func TestScheduleRuleBased(t *testing.T) {
	env := newTestEnv(t)

	result := env.scheduler.Schedule(&domain.ScheduleRequest{
		FactoryID:     testFactory,
		TaskType:      "sewing",
		RequiredCount: 1,
		Context:       domain.SchedulingContext{AvailableWorkers: 5, PendingTasks: 10},
		Candidates: []domain.Candidate{
			{WorkerID: 1, ExpectedReward: 0.9, HistoricalAssignments: 40},
			{WorkerID: 2, ExpectedReward: 0.7, HistoricalAssignments: 0},
		},
	})

	assert.Equal(t, domain.ModeRuleBased, result.Mode)
	assert.InDelta(t, 0.12, result.Assessment.OverallScore, 1e-9)
	require.Len(t, result.Workers, 1)
	assert.Equal(t, int64(2), result.Workers[0].WorkerID)
	assert.Nil(t, result.Workers[0].Detail)
}

func TestScheduleEscalates(t *testing.T) {
	env := newTestEnv(t)

	result := env.scheduler.Schedule(&domain.ScheduleRequest{
		FactoryID:     testFactory,
		RequiredCount: 3,
		Context: domain.SchedulingContext{
			AvailableWorkers:   60,
			TempWorkers:        20,
			PendingTasks:       150,
			HasSkuConstraints:  true,
			HasTimeConstraints: true,
			UrgentTaskRatio:    0.4,
		},
		Candidates: []domain.Candidate{{WorkerID: 1, ExpectedReward: 0.9}},
	})

	assert.Equal(t, domain.ModeHierarchicalRL, result.Mode)
	assert.NotNil(t, result.Workers)
	assert.Empty(t, result.Workers)
}

func fairBanditContext() domain.SchedulingContext {
	return domain.SchedulingContext{
		AvailableWorkers:  30,
		PendingTasks:      60,
		ProcessTypes:      6,
		HasSkuConstraints: true,
	}
}

func TestScheduleFairBandit(t *testing.T) {
	env := newTestEnv(t)
	veteran := env.addWorker(t, "AA01", domain.EmploymentPermanent, 300)
	newcomer := env.addWorker(t, "AA02", domain.EmploymentTemporary, 0)
	_, err := env.scheduler.Sku.SetComplexity(testFactory, "SKU-9", 3)
	require.NoError(t, err)

	for range 6 {
		env.scheduler.Fairness.UpdateVirtualQueue(testFactory, veteran.ID, true)
	}

	result := env.scheduler.Schedule(&domain.ScheduleRequest{
		FactoryID:     testFactory,
		TaskType:      "sewing",
		SkuCode:       "SKU-9",
		RequiredCount: 2,
		Context:       fairBanditContext(),
		Candidates: []domain.Candidate{
			{WorkerID: veteran.ID, ExpectedReward: 0.6, SkillLevel: 3},
			{WorkerID: newcomer.ID, ExpectedReward: 0.6, SkillLevel: 2},
		},
	})

	require.Equal(t, domain.ModeFairBandit, result.Mode)
	require.Len(t, result.Workers, 2)
	assert.Equal(t, newcomer.ID, result.Workers[0].WorkerID)

	for _, r := range result.Workers {
		require.NotNil(t, r.Detail)
		assert.InDelta(t, r.Detail.Total+r.Detail.MatchScore+r.Detail.LearningBonus, r.Score, 1e-9)
	}

	top := result.Workers[0].Detail
	assert.InDelta(t, 0.2, top.LearningBonus, 1e-9)
	assert.InDelta(t, 0.15, top.MatchScore, 1e-9)
	assert.InDelta(t, 0.2, result.Workers[1].Detail.MatchScore, 1e-9)
}

func TestScheduleUsesBaseScorer(t *testing.T) {
	env := newTestEnv(t)
	a := env.addWorker(t, "AB01", domain.EmploymentPermanent, 300)
	b := env.addWorker(t, "AB02", domain.EmploymentPermanent, 300)
	env.scheduler.baseScorer = stubBaseScorer{scores: map[int64]float64{a.ID: 0.2, b.ID: 0.9}}

	req := &domain.ScheduleRequest{
		FactoryID:     testFactory,
		TaskType:      "sewing",
		RequiredCount: 2,
		Context:       fairBanditContext(),
		Candidates: []domain.Candidate{
			{WorkerID: a.ID, ExpectedReward: 0.9},
			{WorkerID: b.ID, ExpectedReward: 0.1},
		},
	}

	result := env.scheduler.Schedule(req)
	require.Len(t, result.Workers, 2)
	assert.Equal(t, b.ID, result.Workers[0].WorkerID)
	assert.InDelta(t, 0.9, result.Workers[0].Detail.BaseScore, 1e-9)

	env.scheduler.baseScorer = stubBaseScorer{err: errStoreDown}
	result = env.scheduler.Schedule(req)
	assert.Equal(t, a.ID, result.Workers[0].WorkerID)
	assert.InDelta(t, 0.9, result.Workers[0].Detail.BaseScore, 1e-9)
}

func TestRecordFeedback(t *testing.T) {
	env := newTestEnv(t)
	a := env.addWorker(t, "AC01", domain.EmploymentPermanent, 100)
	b := env.addWorker(t, "AC02", domain.EmploymentPermanent, 100)

	for i, eff := range []float64{0.8, 0.6} {
		require.NoError(t, env.scheduler.RecordFeedback(&domain.AllocationFeedback{
			FactoryID:  testFactory,
			WorkerID:   a.ID,
			TaskType:   "sewing",
			SkuCode:    "SKU-3",
			Efficiency: eff,
			Completed:  i == 0,
		}))
	}

	worker, err := env.scheduler.TempWorkers.GetWorker(testFactory, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), worker.TotalAssignments)
	assert.InDelta(t, 0.8*0.8+0.2*0.6, worker.AvgEfficiency, 1e-9)
	assert.InDelta(t, 0.5, worker.ReliabilityScore, 1e-9)

	require.Len(t, env.store.feedback, 2)
	assert.Equal(t, env.clock.Now(), env.store.feedback[0].RecordedAt)

	assert.InDelta(t, 0.5*0.95+0.5, env.scheduler.Fairness.VirtualQueueLength(testFactory, b.ID), 1e-9)
	queue, err := env.store.GetVirtualQueue(testFactory)
	require.NoError(t, err)
	assert.Len(t, queue, 2)
}

func TestRecordFeedbackLearnsSkuComplexity(t *testing.T) {
	env := newTestEnv(t)
	w := env.addWorker(t, "AD01", domain.EmploymentPermanent, 100)

	for range 10 {
		require.NoError(t, env.scheduler.RecordFeedback(&domain.AllocationFeedback{
			FactoryID:  testFactory,
			WorkerID:   w.ID,
			TaskType:   "sewing",
			SkuCode:    "SKU-4",
			Efficiency: 0.6,
			Completed:  true,
		}))
	}

	profile, err := env.scheduler.Sku.GetProfile(testFactory, "SKU-4")
	require.NoError(t, err)
	require.NotNil(t, profile.LearnedComplexity)
	assert.InDelta(t, 2.0, *profile.LearnedComplexity, 1e-6)
}

func TestRecordFeedbackRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	w := env.addWorker(t, "AE01", domain.EmploymentPermanent, 100)

	tests := []struct {
		name string
		fb   domain.AllocationFeedback
		want error
	}{
		{"missing task type", domain.AllocationFeedback{FactoryID: testFactory, WorkerID: w.ID, Efficiency: 0.5}, domain.ErrInvalidFeedback},
		{"negative efficiency", domain.AllocationFeedback{FactoryID: testFactory, WorkerID: w.ID, TaskType: "sewing", Efficiency: -0.1}, domain.ErrInvalidFeedback},
		{"missing worker", domain.AllocationFeedback{FactoryID: testFactory, TaskType: "sewing"}, domain.ErrInvalidFeedback},
		{"unknown worker", domain.AllocationFeedback{FactoryID: testFactory, WorkerID: 999, TaskType: "sewing"}, domain.ErrWorkerNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fb := test.fb
			assert.ErrorIs(t, env.scheduler.RecordFeedback(&fb), test.want)
		})
	}
	assert.Empty(t, env.store.feedback)
}

func TestAdaptationLogsDefaultLimit(t *testing.T) {
	env := newTestEnv(t)
	for range 60 {
		require.NoError(t, env.store.InsertAdaptationLog(&domain.AdaptationLog{
			FactoryID: testFactory,
			Kind:      domain.AdaptationSkipped,
			CreatedAt: env.clock.Now(),
		}))
		env.clock.Advance(time.Minute)
	}

	logs, err := env.scheduler.AdaptationLogs(testFactory, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 50)

	logs, err = env.scheduler.AdaptationLogs(testFactory, 5)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}

// racingWorkerStore 在每次更新工人之前让另一个写入者先完成一次分配统计
type racingWorkerStore struct {
	*memStore
	races int
}

func (s *racingWorkerStore) UpdateWorker(worker *domain.Worker) error {
	if s.races > 0 {
		s.races--
		other, err := s.memStore.GetWorker(worker.FactoryID, worker.ID)
		if err != nil {
			return err
		}
		other.TotalAssignments++
		if err := s.memStore.UpdateWorker(other); err != nil {
			return err
		}
	}
	return s.memStore.UpdateWorker(worker)
}

func newRacingScheduler(t *testing.T, env *testEnv, races int) *Scheduler {
	t.Helper()

	workers := &racingWorkerStore{memStore: env.store, races: races}
	s, err := New(Dependencies{
		Configs:  env.store,
		Workers:  workers,
		Skus:     env.store,
		Feedback: env.store,
		Logs:     env.store,
		Logger:   env.scheduler.logger,
		Now:      env.clock.Now,
		Defaults: testDefaults,
	})
	require.NoError(t, err)
	return s
}

func TestRecordFeedbackRetriesOnVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	w := env.addWorker(t, "AF01", domain.EmploymentPermanent, 100)
	s := newRacingScheduler(t, env, 2)

	require.NoError(t, s.RecordFeedback(&domain.AllocationFeedback{
		FactoryID:  testFactory,
		WorkerID:   w.ID,
		TaskType:   "sewing",
		Efficiency: 0.9,
		Completed:  true,
	}))

	stored, err := env.store.GetWorker(testFactory, w.ID)
	require.NoError(t, err)
	// 两次并发写入加上本次反馈
	assert.Equal(t, int64(3), stored.TotalAssignments)
	assert.Equal(t, int32(3), stored.Version)
}

func TestRecordFeedbackGivesUpAfterRepeatedConflicts(t *testing.T) {
	env := newTestEnv(t)
	w := env.addWorker(t, "AG01", domain.EmploymentPermanent, 100)
	s := newRacingScheduler(t, env, 100)

	// 统计更新失败不影响反馈本身的记录
	require.NoError(t, s.RecordFeedback(&domain.AllocationFeedback{
		FactoryID:  testFactory,
		WorkerID:   w.ID,
		TaskType:   "sewing",
		Efficiency: 0.9,
	}))

	stored, err := env.store.GetWorker(testFactory, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(maxStatsUpdateAttempts), stored.TotalAssignments)
	assert.Len(t, env.store.feedback, 1)
}
