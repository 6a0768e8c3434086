package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const (
	learningBonusDays      = 30
	learningBonusMax       = 0.2
	tempMaxConsecutiveDays = 3

	conversionMinDays        = 30
	conversionEfficiencyBar  = 0.80
	conversionReliabilityBar = 0.75
)

// TempWorkerAdjuster 管理临时工的生命周期，并给出临时工的打分修正系数
type TempWorkerAdjuster struct {
	workers WorkerStore
	configs *configProvider
	logger  *slog.Logger
	now     func() time.Time
}

func (a *TempWorkerAdjuster) GetWorker(factoryID, workerID int64) (*domain.Worker, error) {
	return a.workers.GetWorker(factoryID, workerID)
}

// RegisterWorker 登记新工人，同一工厂内工号重复时拒绝
func (a *TempWorkerAdjuster) RegisterWorker(worker *domain.Worker) error {
	if err := validateWorker(worker); err != nil {
		return err
	}

	_, err := a.workers.GetWorkerByCode(worker.FactoryID, worker.Code)
	switch {
	case err == nil:
		return domain.ErrWorkerAlreadyRegistered
	case !errors.Is(err, domain.ErrWorkerNotFound):
		return err
	}

	if worker.HireDate.IsZero() {
		worker.HireDate = a.now()
	}
	worker.ConvertedAt = nil
	worker.TotalAssignments = 0

	if err := a.workers.CreateWorker(worker); err != nil {
		return err
	}

	a.logger.Info("已登记工人", "factoryID", worker.FactoryID, "workerID", worker.ID, "type", worker.EmploymentType)
	return nil
}

func validateWorker(w *domain.Worker) error {
	if w.FactoryID <= 0 || w.Code == "" {
		return fmt.Errorf("%w: 缺少工厂或工号", domain.ErrInvalidWorker)
	}
	if w.SkillLevel < 1 || w.SkillLevel > 5 {
		return fmt.Errorf("%w: 技能等级必须在 1 到 5 之间", domain.ErrInvalidWorker)
	}

	switch w.EmploymentType {
	case domain.EmploymentTemporary:
		if w.ExpectedEndDate == nil {
			return fmt.Errorf("%w: 临时工必须填写预计离职日期", domain.ErrInvalidWorker)
		}
		if !w.HireDate.IsZero() && !w.ExpectedEndDate.After(w.HireDate) {
			return fmt.Errorf("%w: 预计离职日期必须晚于入职日期", domain.ErrInvalidWorker)
		}
	case domain.EmploymentPermanent:
		if w.ExpectedEndDate != nil {
			return fmt.Errorf("%w: 正式工不能填写预计离职日期", domain.ErrInvalidWorker)
		}
	default:
		return fmt.Errorf("%w: 未知的用工类型 %q", domain.ErrInvalidWorker, w.EmploymentType)
	}

	return nil
}

// ConvertToPermanent 把临时工转为正式工，这是不可逆的终态
func (a *TempWorkerAdjuster) ConvertToPermanent(factoryID, workerID int64) (*domain.Worker, error) {
	worker, err := a.workers.GetWorker(factoryID, workerID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	switch worker.Status(now) {
	case domain.WorkerStatusPermanent, domain.WorkerStatusConverted:
		return nil, domain.ErrWorkerAlreadyPermanent
	case domain.WorkerStatusExpired:
		return nil, domain.ErrWorkerContractExpired
	}

	// 在副本上修改，写入失败时原记录保持不变
	converted := *worker
	converted.EmploymentType = domain.EmploymentPermanent
	converted.ConvertedAt = &now

	if err := a.workers.UpdateWorker(&converted); err != nil {
		return nil, err
	}

	a.logger.Info("临时工已转正", "factoryID", factoryID, "workerID", workerID)
	return &converted, nil
}

func (a *TempWorkerAdjuster) CalculateAdjustment(factoryID, workerID int64) (*domain.Adjustment, error) {
	worker, err := a.workers.GetWorker(factoryID, workerID)
	if err != nil {
		return nil, err
	}

	cfg := a.configs.Get(factoryID)
	adj := &domain.Adjustment{
		WorkerID:           workerID,
		BanditFactor:       1.0,
		FairnessFactor:     1.0,
		SkillDecayDays:     cfg.SkillDecayDays,
		MaxConsecutiveDays: cfg.MaxConsecutiveDays,
	}

	if !worker.IsTemporary() || !cfg.TempWorkerEnabled {
		return adj, nil
	}

	days := worker.DaysEmployed(a.now())
	adj.Temporary = true
	adj.BanditFactor = cfg.TempBanditFactor
	adj.FairnessFactor = cfg.TempFairnessFactor
	adj.SkillDecayDays = cfg.TempSkillDecayDays
	adj.MaxConsecutiveDays = min(tempMaxConsecutiveDays, cfg.MaxConsecutiveDays)
	adj.LearningBonus = learningBonus(days)

	return adj, nil
}

// learningBonus 给新入职的临时工一个随时间线性衰减的奖励，30 天后归零
func learningBonus(daysEmployed int) float64 {
	return max(0, float64(learningBonusDays-daysEmployed)/learningBonusDays*learningBonusMax)
}

func conversionScore(efficiency, reliability float64, assignments int64, days int) float64 {
	return 0.4*efficiency +
		0.3*reliability +
		0.2*min(1, float64(assignments)/50) +
		0.1*min(1, float64(days)/90)
}

func conversionRecommendation(efficiency, reliability float64) string {
	effOK := efficiency >= conversionEfficiencyBar
	relOK := reliability >= conversionReliabilityBar

	switch {
	case effOK && relOK:
		return "效率与可靠性均达标，建议转正"
	case effOK:
		return "效率达标但可靠性不足，建议延长观察期"
	case relOK:
		return "可靠性达标但效率不足，建议加强技能培训"
	default:
		return "效率与可靠性均未达标，暂不建议转正"
	}
}

// GetConversionCandidates 对入职满 30 天且仍在合同期内的临时工按转正分数排序
func (a *TempWorkerAdjuster) GetConversionCandidates(factoryID int64) ([]domain.ConversionCandidate, error) {
	workers, err := a.workers.GetActiveWorkers(factoryID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	candidates := make([]domain.ConversionCandidate, 0)
	for _, w := range workers {
		if w.Status(now) != domain.WorkerStatusTemporary {
			continue
		}
		days := w.DaysEmployed(now)
		if days < conversionMinDays {
			continue
		}

		candidates = append(candidates, domain.ConversionCandidate{
			WorkerID:         w.ID,
			Code:             w.Code,
			FullName:         w.FullName,
			DaysEmployed:     days,
			AvgEfficiency:    w.AvgEfficiency,
			ReliabilityScore: w.ReliabilityScore,
			TotalAssignments: w.TotalAssignments,
			ConversionScore:  conversionScore(w.AvgEfficiency, w.ReliabilityScore, w.TotalAssignments, days),
			Recommendation:   conversionRecommendation(w.AvgEfficiency, w.ReliabilityScore),
		})
	}

	slices.SortFunc(candidates, func(x, y domain.ConversionCandidate) int {
		if c := cmp.Compare(y.ConversionScore, x.ConversionScore); c != 0 {
			return c
		}
		return cmp.Compare(x.WorkerID, y.WorkerID)
	})

	return candidates, nil
}
