package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// factoryState 是单个工厂的全部可变共享状态，由一把读写锁保护
// 不同工厂之间互不共享锁
type factoryState struct {
	mu sync.RWMutex

	debts       map[int64]float64 // workerID -> 公平性欠账
	counts      map[int64]int64   // workerID -> 本周期分配次数
	total       int64             // 本周期分配总数
	active      map[int64]struct{}
	seeded      bool // 在岗集合是否已经与存储同步过
	periodStart time.Time

	cfg *domain.SchedulingConfig // 为 nil 表示尚未从存储中加载

	warm sync.Once
}

func newFactoryState(now time.Time) *factoryState {
	return &factoryState{
		debts:       make(map[int64]float64),
		counts:      make(map[int64]int64),
		active:      make(map[int64]struct{}),
		periodStart: now,
	}
}

// fairnessView 是打分时读取的一致快照
type fairnessView struct {
	debt        float64
	count       int64
	total       int64
	activeCount int
}

func (s *factoryState) view(workerID int64) fairnessView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fairnessView{
		debt:        s.debts[workerID],
		count:       s.counts[workerID],
		total:       s.total,
		activeCount: len(s.active),
	}
}

func (v fairnessView) targetRatio() float64 {
	return 1 / float64(max(1, v.activeCount))
}

// actualRatio 在本周期还没有任何分配时返回中性值 0.5
func (v fairnessView) actualRatio() float64 {
	if v.total == 0 {
		return 0.5
	}
	return float64(v.count) / float64(v.total)
}

type stateRegistry struct {
	states *xsync.Map[int64, *factoryState]
	now    func() time.Time
}

func newStateRegistry(now func() time.Time) *stateRegistry {
	return &stateRegistry{
		states: xsync.NewMap[int64, *factoryState](),
		now:    now,
	}
}

func (r *stateRegistry) get(factoryID int64) *factoryState {
	if st, ok := r.states.Load(factoryID); ok {
		return st
	}
	st, _ := r.states.LoadOrStore(factoryID, newFactoryState(r.now()))
	return st
}

// configProvider 懒加载每个工厂的调度配置，第一次访问时写入默认值
type configProvider struct {
	store    ConfigStore
	registry *stateRegistry
	defaults func(factoryID int64) *domain.SchedulingConfig
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// Get 返回配置的副本，调用方可以随意读取
func (p *configProvider) Get(factoryID int64) domain.SchedulingConfig {
	st := p.registry.get(factoryID)

	st.mu.RLock()
	if st.cfg != nil {
		cfg := *st.cfg
		st.mu.RUnlock()
		return cfg
	}
	st.mu.RUnlock()

	// 存储读写必须在加锁之前完成
	cfg, cacheable := p.load(factoryID)
	if !cacheable {
		return *cfg
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cfg == nil {
		st.cfg = cfg
	}
	return *st.cfg
}

func (p *configProvider) load(factoryID int64) (*domain.SchedulingConfig, bool) {
	cfg, err := p.store.GetSchedulingConfig(factoryID)
	if err == nil {
		return cfg, true
	}

	if !errors.Is(err, domain.ErrConfigNotFound) {
		// 存储不可用时使用默认值，但不缓存，等存储恢复后重新加载
		p.logger.Error("无法读取调度配置，使用默认配置", "factoryID", factoryID, "error", err)
		p.metrics.IncFallback("config")
		return p.defaults(factoryID), false
	}

	cfg = p.defaults(factoryID)
	if err := p.store.CreateSchedulingConfig(cfg); err != nil {
		// 可能是并发创建，重新读一次
		if existing, getErr := p.store.GetSchedulingConfig(factoryID); getErr == nil {
			return existing, true
		}
		p.logger.Error("无法创建调度配置", "factoryID", factoryID, "error", err)
		p.metrics.IncFallback("config")
		return cfg, false
	}

	p.logger.Info("已为工厂创建默认调度配置", "factoryID", factoryID)
	return cfg, true
}
