package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func TestLearningBonus(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{0, 0.2},
		{15, 0.1},
		{29, 0.2 / 30},
		{30, 0},
		{120, 0},
	}

	for _, test := range tests {
		assert.InDelta(t, test.want, learningBonus(test.days), 1e-9, "days=%d", test.days)
	}
}

func TestCalculateAdjustment(t *testing.T) {
	env := newTestEnv(t)
	temp := env.addWorker(t, "T01", domain.EmploymentTemporary, 0)
	perm := env.addWorker(t, "T02", domain.EmploymentPermanent, 400)

	adj, err := env.scheduler.TempWorkers.CalculateAdjustment(testFactory, temp.ID)
	require.NoError(t, err)
	assert.True(t, adj.Temporary)
	assert.InDelta(t, 0.7, adj.BanditFactor, 1e-9)
	assert.InDelta(t, 1.5, adj.FairnessFactor, 1e-9)
	assert.Equal(t, int32(14), adj.SkillDecayDays)
	assert.Equal(t, int32(3), adj.MaxConsecutiveDays)
	assert.InDelta(t, 0.2, adj.LearningBonus, 1e-9)

	adj, err = env.scheduler.TempWorkers.CalculateAdjustment(testFactory, perm.ID)
	require.NoError(t, err)
	assert.False(t, adj.Temporary)
	assert.InDelta(t, 1.0, adj.BanditFactor, 1e-9)
	assert.Equal(t, int32(30), adj.SkillDecayDays)
	assert.Equal(t, int32(5), adj.MaxConsecutiveDays)

	env.clock.Advance(30 * 24 * time.Hour)
	adj, err = env.scheduler.TempWorkers.CalculateAdjustment(testFactory, temp.ID)
	require.NoError(t, err)
	assert.Zero(t, adj.LearningBonus)

	_, err = env.scheduler.TempWorkers.CalculateAdjustment(testFactory, 999)
	assert.ErrorIs(t, err, domain.ErrWorkerNotFound)
}

func TestCalculateAdjustmentWithTempHandlingDisabled(t *testing.T) {
	env := newTestEnv(t)
	cfg := testDefaults(testFactory)
	cfg.TempWorkerEnabled = false
	require.NoError(t, env.store.CreateSchedulingConfig(cfg))
	temp := env.addWorker(t, "U01", domain.EmploymentTemporary, 2)

	adj, err := env.scheduler.TempWorkers.CalculateAdjustment(testFactory, temp.ID)
	require.NoError(t, err)
	assert.False(t, adj.Temporary)
	assert.InDelta(t, 1.0, adj.BanditFactor, 1e-9)
	assert.Zero(t, adj.LearningBonus)
}

func TestRegisterWorker(t *testing.T) {
	env := newTestEnv(t)
	env.addWorker(t, "V01", domain.EmploymentPermanent, 10)

	end := env.clock.Now().AddDate(0, 3, 0)
	past := env.clock.Now().AddDate(0, -1, 0)

	tests := []struct {
		name   string
		worker domain.Worker
		want   error
	}{
		{
			name:   "duplicate code",
			worker: domain.Worker{FactoryID: testFactory, Code: "V01", EmploymentType: domain.EmploymentPermanent, SkillLevel: 2},
			want:   domain.ErrWorkerAlreadyRegistered,
		},
		{
			name:   "missing code",
			worker: domain.Worker{FactoryID: testFactory, EmploymentType: domain.EmploymentPermanent, SkillLevel: 2},
			want:   domain.ErrInvalidWorker,
		},
		{
			name:   "skill out of range",
			worker: domain.Worker{FactoryID: testFactory, Code: "V02", EmploymentType: domain.EmploymentPermanent, SkillLevel: 6},
			want:   domain.ErrInvalidWorker,
		},
		{
			name:   "temporary without end date",
			worker: domain.Worker{FactoryID: testFactory, Code: "V03", EmploymentType: domain.EmploymentTemporary, SkillLevel: 1},
			want:   domain.ErrInvalidWorker,
		},
		{
			name: "temporary ending before hire",
			worker: domain.Worker{
				FactoryID: testFactory, Code: "V04", EmploymentType: domain.EmploymentTemporary, SkillLevel: 1,
				HireDate: env.clock.Now(), ExpectedEndDate: &past,
			},
			want: domain.ErrInvalidWorker,
		},
		{
			name:   "permanent with end date",
			worker: domain.Worker{FactoryID: testFactory, Code: "V05", EmploymentType: domain.EmploymentPermanent, SkillLevel: 1, ExpectedEndDate: &end},
			want:   domain.ErrInvalidWorker,
		},
		{
			name:   "unknown employment type",
			worker: domain.Worker{FactoryID: testFactory, Code: "V06", EmploymentType: "seasonal", SkillLevel: 1},
			want:   domain.ErrInvalidWorker,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := test.worker
			assert.ErrorIs(t, env.scheduler.TempWorkers.RegisterWorker(&w), test.want)
		})
	}

	w := &domain.Worker{FactoryID: testFactory, Code: "V07", EmploymentType: domain.EmploymentTemporary, SkillLevel: 1, ExpectedEndDate: &end}
	require.NoError(t, env.scheduler.TempWorkers.RegisterWorker(w))
	assert.NotZero(t, w.ID)
	assert.Equal(t, env.clock.Now(), w.HireDate)
}

func TestConvertToPermanent(t *testing.T) {
	env := newTestEnv(t)
	temp := env.addWorker(t, "W01", domain.EmploymentTemporary, 45)
	perm := env.addWorker(t, "W02", domain.EmploymentPermanent, 45)
	expired := env.addWorker(t, "W03", domain.EmploymentTemporary, 200)

	converted, err := env.scheduler.TempWorkers.ConvertToPermanent(testFactory, temp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmploymentPermanent, converted.EmploymentType)
	require.NotNil(t, converted.ConvertedAt)
	assert.Equal(t, domain.WorkerStatusConverted, converted.Status(env.clock.Now()))

	stored, err := env.scheduler.TempWorkers.GetWorker(testFactory, temp.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsTemporary())

	_, err = env.scheduler.TempWorkers.ConvertToPermanent(testFactory, temp.ID)
	assert.ErrorIs(t, err, domain.ErrWorkerAlreadyPermanent)

	_, err = env.scheduler.TempWorkers.ConvertToPermanent(testFactory, perm.ID)
	assert.ErrorIs(t, err, domain.ErrWorkerAlreadyPermanent)

	_, err = env.scheduler.TempWorkers.ConvertToPermanent(testFactory, expired.ID)
	assert.ErrorIs(t, err, domain.ErrWorkerContractExpired)

	_, err = env.scheduler.TempWorkers.ConvertToPermanent(testFactory, 999)
	assert.ErrorIs(t, err, domain.ErrWorkerNotFound)
}

func TestGetConversionCandidates(t *testing.T) {
	env := newTestEnv(t)
	setStats := func(w *domain.Worker, efficiency, reliability float64, assignments int64) {
		stored := env.store.workers[w.ID]
		stored.AvgEfficiency = efficiency
		stored.ReliabilityScore = reliability
		stored.TotalAssignments = assignments
	}

	strong := env.addWorker(t, "X01", domain.EmploymentTemporary, 40)
	setStats(strong, 0.9, 0.9, 60)
	slow := env.addWorker(t, "X02", domain.EmploymentTemporary, 60)
	setStats(slow, 0.5, 0.8, 10)
	fresh := env.addWorker(t, "X03", domain.EmploymentTemporary, 10)
	setStats(fresh, 1.0, 1.0, 30)
	expired := env.addWorker(t, "X04", domain.EmploymentTemporary, 200)
	setStats(expired, 1.0, 1.0, 200)
	env.addWorker(t, "X05", domain.EmploymentPermanent, 400)

	candidates, err := env.scheduler.TempWorkers.GetConversionCandidates(testFactory)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, strong.ID, candidates[0].WorkerID)
	assert.InDelta(t, 0.4*0.9+0.3*0.9+0.2*1+0.1*40.0/90, candidates[0].ConversionScore, 1e-9)
	assert.Equal(t, "效率与可靠性均达标，建议转正", candidates[0].Recommendation)

	assert.Equal(t, slow.ID, candidates[1].WorkerID)
	assert.InDelta(t, 0.4*0.5+0.3*0.8+0.2*0.2+0.1*60.0/90, candidates[1].ConversionScore, 1e-9)
	assert.Equal(t, "可靠性达标但效率不足，建议加强技能培训", candidates[1].Recommendation)
}
