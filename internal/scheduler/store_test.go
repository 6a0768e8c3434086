package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

// memStore 是所有存储接口的内存实现
type memStore struct {
	mu sync.Mutex

	configs  map[int64]*domain.SchedulingConfig
	workers  map[int64]*domain.Worker
	nextID   int64
	skus     map[string]*domain.SkuProfile
	feedback []*domain.AllocationFeedback
	logs     []*domain.AdaptationLog
	queues   map[int64][]domain.VirtualQueueEntry

	configUpdates int

	failConfigs  error
	failWorkers  error
	failFeedback error
	failSkus     error
	failUpdate   error
}

func newMemStore() *memStore {
	return &memStore{
		configs: make(map[int64]*domain.SchedulingConfig),
		workers: make(map[int64]*domain.Worker),
		skus:    make(map[string]*domain.SkuProfile),
		queues:  make(map[int64][]domain.VirtualQueueEntry),
	}
}

func skuKey(factoryID int64, code string) string {
	return fmt.Sprintf("%d/%s", factoryID, code)
}

func (m *memStore) GetSchedulingConfig(factoryID int64) (*domain.SchedulingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfigs != nil {
		return nil, m.failConfigs
	}
	cfg, ok := m.configs[factoryID]
	if !ok {
		return nil, domain.ErrConfigNotFound
	}
	c := *cfg
	return &c, nil
}

func (m *memStore) CreateSchedulingConfig(cfg *domain.SchedulingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	m.configs[cfg.FactoryID] = &c
	return nil
}

func (m *memStore) UpdateSchedulingConfig(cfg *domain.SchedulingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	c := *cfg
	m.configs[cfg.FactoryID] = &c
	m.configUpdates++
	return nil
}

func (m *memStore) GetAllFactoryIDs() ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memStore) GetWorker(factoryID, workerID int64) (*domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWorkers != nil {
		return nil, m.failWorkers
	}
	w, ok := m.workers[workerID]
	if !ok || w.FactoryID != factoryID || w.DeletedAt != nil {
		return nil, domain.ErrWorkerNotFound
	}
	c := *w
	return &c, nil
}

func (m *memStore) GetWorkerByCode(factoryID int64, code string) (*domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.FactoryID == factoryID && w.Code == code {
			c := *w
			return &c, nil
		}
	}
	return nil, domain.ErrWorkerNotFound
}

func (m *memStore) GetActiveWorkers(factoryID int64) ([]*domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWorkers != nil {
		return nil, m.failWorkers
	}
	workers := make([]*domain.Worker, 0)
	for _, w := range m.workers {
		if w.FactoryID == factoryID && w.DeletedAt == nil {
			c := *w
			workers = append(workers, &c)
		}
	}
	slices.SortFunc(workers, func(a, b *domain.Worker) int { return cmp.Compare(a.ID, b.ID) })
	return workers, nil
}

func (m *memStore) CreateWorker(worker *domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	worker.ID = m.nextID
	c := *worker
	m.workers[worker.ID] = &c
	return nil
}

// UpdateWorker 与 repository 一样使用乐观锁
func (m *memStore) UpdateWorker(worker *domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWorkers != nil {
		return m.failWorkers
	}
	stored, ok := m.workers[worker.ID]
	if !ok || stored.DeletedAt != nil || stored.Version != worker.Version {
		return domain.ErrVersionConflict
	}
	worker.Version++
	c := *worker
	m.workers[worker.ID] = &c
	return nil
}

func (m *memStore) GetSkuProfile(factoryID int64, skuCode string) (*domain.SkuProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSkus != nil {
		return nil, m.failSkus
	}
	p, ok := m.skus[skuKey(factoryID, skuCode)]
	if !ok {
		return nil, domain.ErrSkuNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) GetAllSkuProfiles(factoryID int64) ([]*domain.SkuProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSkus != nil {
		return nil, m.failSkus
	}
	profiles := make([]*domain.SkuProfile, 0)
	for _, p := range m.skus {
		if p.FactoryID == factoryID {
			c := *p
			profiles = append(profiles, &c)
		}
	}
	return profiles, nil
}

func (m *memStore) UpsertSkuProfile(profile *domain.SkuProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSkus != nil {
		return m.failSkus
	}
	c := *profile
	m.skus[skuKey(profile.FactoryID, profile.SkuCode)] = &c
	return nil
}

func (m *memStore) SetManualComplexity(factoryID int64, skuCode string, level int32, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSkus != nil {
		return m.failSkus
	}
	key := skuKey(factoryID, skuCode)
	p, ok := m.skus[key]
	if !ok {
		p = &domain.SkuProfile{FactoryID: factoryID, SkuCode: skuCode}
		m.skus[key] = p
	}
	p.ManualComplexity = &level
	p.UpdatedAt = updatedAt
	return nil
}

func (m *memStore) UpdateLearnedComplexity(profile *domain.SkuProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSkus != nil {
		return m.failSkus
	}
	key := skuKey(profile.FactoryID, profile.SkuCode)
	p, ok := m.skus[key]
	if !ok {
		p = &domain.SkuProfile{FactoryID: profile.FactoryID, SkuCode: profile.SkuCode}
		m.skus[key] = p
	}
	p.LearnedComplexity = profile.LearnedComplexity
	p.SampleCount = profile.SampleCount
	p.AvgEfficiency = profile.AvgEfficiency
	p.FailureRate = profile.FailureRate
	p.UpdatedAt = profile.UpdatedAt
	return nil
}

func (m *memStore) InsertFeedback(fb *domain.AllocationFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFeedback != nil {
		return m.failFeedback
	}
	fb.ID = int64(len(m.feedback) + 1)
	c := *fb
	m.feedback = append(m.feedback, &c)
	return nil
}

func (m *memStore) window(factoryID int64, since time.Time) ([]*domain.AllocationFeedback, error) {
	if m.failFeedback != nil {
		return nil, m.failFeedback
	}
	rows := make([]*domain.AllocationFeedback, 0)
	for _, fb := range m.feedback {
		if fb.FactoryID == factoryID && !fb.RecordedAt.Before(since) {
			rows = append(rows, fb)
		}
	}
	return rows, nil
}

func (m *memStore) CountFeedbackSince(factoryID int64, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.window(factoryID, since)
	return int64(len(rows)), err
}

func (m *memStore) AverageEfficiencySince(factoryID int64, since time.Time) (float64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.window(factoryID, since)
	if err != nil || len(rows) == 0 {
		return 0, 0, err
	}
	sum := 0.0
	for _, fb := range rows {
		sum += fb.Efficiency
	}
	return sum / float64(len(rows)), int64(len(rows)), nil
}

func (m *memStore) StageCountsSince(factoryID int64, since time.Time) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.window(factoryID, since)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, fb := range rows {
		counts[fb.TaskType]++
	}
	return counts, nil
}

func (m *memStore) WorkerAssignmentCountsSince(factoryID int64, since time.Time) (map[int64]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.window(factoryID, since)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64)
	for _, fb := range rows {
		counts[fb.WorkerID]++
	}
	return counts, nil
}

func (m *memStore) SkuStatsSince(factoryID int64, skuCode string, since time.Time) (*domain.SkuStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.window(factoryID, since)
	if err != nil {
		return nil, err
	}

	stats := &domain.SkuStats{}
	values := make([]float64, 0)
	failed := 0
	for _, fb := range rows {
		if fb.SkuCode != skuCode {
			continue
		}
		values = append(values, fb.Efficiency)
		if !fb.Completed {
			failed++
		}
	}
	if len(values) == 0 {
		return stats, nil
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}

	stats.AvgEfficiency = avg
	stats.StdDev = math.Sqrt(variance / float64(len(values)))
	stats.SampleCount = int64(len(values))
	stats.FailureRate = float64(failed) / float64(len(values))
	return stats, nil
}

func (m *memStore) InsertAdaptationLog(entry *domain.AdaptationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.logs) + 1)
	c := *entry
	m.logs = append(m.logs, &c)
	return nil
}

func (m *memStore) GetAdaptationLogs(factoryID int64, limit int) ([]*domain.AdaptationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]*domain.AdaptationLog, 0)
	for i := len(m.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		if m.logs[i].FactoryID == factoryID {
			logs = append(logs, m.logs[i])
		}
	}
	return logs, nil
}

func (m *memStore) logsOfKind(kind domain.AdaptationKind) []*domain.AdaptationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := make([]*domain.AdaptationLog, 0)
	for _, l := range m.logs {
		if l.Kind == kind {
			logs = append(logs, l)
		}
	}
	return logs
}

func (m *memStore) GetVirtualQueue(factoryID int64) ([]domain.VirtualQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queues[factoryID]), nil
}

func (m *memStore) ReplaceVirtualQueue(factoryID int64, entries []domain.VirtualQueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[factoryID] = slices.Clone(entries)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.SchedulerEvent
}

func (p *recordingPublisher) Publish(event *domain.SchedulerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t string) []*domain.SchedulerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]*domain.SchedulerEvent, 0)
	for _, e := range p.events {
		if e.Type == t {
			events = append(events, e)
		}
	}
	return events
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const testFactory int64 = 1

func testDefaults(factoryID int64) *domain.SchedulingConfig {
	return &domain.SchedulingConfig{
		FactoryID:         factoryID,
		AdaptiveEnabled:   true,
		FairnessEnabled:   true,
		TempWorkerEnabled: true,
		Weights: domain.Weights{
			Bandit:           0.5,
			Fairness:         0.2,
			SkillMaintenance: 0.15,
			Repetition:       0.15,
		},
		ComplexityWeight:        0.15,
		SkillDecayDays:          30,
		TempSkillDecayDays:      14,
		FairnessPeriodDays:      7,
		MaxConsecutiveDays:      5,
		TempBanditFactor:        0.7,
		TempFairnessFactor:      1.5,
		LearningRate:            0.1,
		EfficiencyTarget:        0.85,
		DiversityTarget:         0.6,
		MinSamplesForAdaptation: 10,
		AnomalyThreshold:        0.5,
	}
}

type testEnv struct {
	store     *memStore
	clock     *fakeClock
	events    *recordingPublisher
	scheduler *Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:  newMemStore(),
		clock:  &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		events: &recordingPublisher{},
	}

	s, err := New(Dependencies{
		Configs:  env.store,
		Workers:  env.store,
		Skus:     env.store,
		Feedback: env.store,
		Logs:     env.store,
		Queues:   env.store,
		Events:   env.events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      env.clock.Now,
		Defaults: testDefaults,
	})
	require.NoError(t, err)
	env.scheduler = s

	return env
}

func (e *testEnv) addWorker(t *testing.T, code string, typ domain.EmploymentType, hiredDaysAgo int) *domain.Worker {
	t.Helper()

	hire := e.clock.Now().AddDate(0, 0, -hiredDaysAgo)
	w := &domain.Worker{
		FactoryID:      testFactory,
		Code:           code,
		FullName:       code,
		EmploymentType: typ,
		HireDate:       hire,
		SkillLevel:     3,
	}
	if typ == domain.EmploymentTemporary {
		end := hire.AddDate(0, 6, 0)
		w.ExpectedEndDate = &end
	}
	require.NoError(t, e.scheduler.TempWorkers.RegisterWorker(w))
	return w
}

func (e *testEnv) addFeedback(t *testing.T, workerID int64, taskType, sku string, efficiency float64, completed bool, age time.Duration) {
	t.Helper()

	require.NoError(t, e.store.InsertFeedback(&domain.AllocationFeedback{
		FactoryID:  testFactory,
		WorkerID:   workerID,
		TaskType:   taskType,
		SkuCode:    sku,
		Efficiency: efficiency,
		Completed:  completed,
		RecordedAt: e.clock.Now().Add(-age),
	}))
}
