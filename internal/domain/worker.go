package domain

import "time"

type EmploymentType string

const (
	EmploymentTemporary EmploymentType = "temporary"
	EmploymentPermanent EmploymentType = "permanent"
)

type WorkerStatus string

const (
	WorkerStatusTemporary WorkerStatus = "temporary"
	WorkerStatusConverted WorkerStatus = "converted"
	WorkerStatusExpired   WorkerStatus = "expired"
	WorkerStatusPermanent WorkerStatus = "permanent"
)

type Worker struct {
	ID               int64          `json:"id"`
	FactoryID        int64          `json:"factoryID"`
	Code             string         `json:"code"`
	FullName         string         `json:"fullName"`
	EmploymentType   EmploymentType `json:"employmentType"`
	HireDate         time.Time      `json:"hireDate"`
	ExpectedEndDate  *time.Time     `json:"expectedEndDate"` // 仅临时工有
	SkillLevel       int32          `json:"skillLevel"`
	AvgEfficiency    float64        `json:"avgEfficiency"`
	ReliabilityScore float64        `json:"reliabilityScore"`
	TotalAssignments int64          `json:"totalAssignments"`
	ConvertedAt      *time.Time     `json:"convertedAt"`
	DeletedAt        *time.Time     `json:"-"`
	CreatedAt        time.Time      `json:"createdAt"`
	Version          int32          `json:"-"`
}

func (w *Worker) IsTemporary() bool {
	return w.EmploymentType == EmploymentTemporary
}

// Status 返回工人在临时工生命周期中所处的状态
func (w *Worker) Status(now time.Time) WorkerStatus {
	switch {
	case w.ConvertedAt != nil:
		return WorkerStatusConverted
	case !w.IsTemporary():
		return WorkerStatusPermanent
	case w.ExpectedEndDate != nil && now.After(*w.ExpectedEndDate):
		return WorkerStatusExpired
	default:
		return WorkerStatusTemporary
	}
}

// DaysEmployed 按整天计算，入职当天为 0
func (w *Worker) DaysEmployed(now time.Time) int {
	if now.Before(w.HireDate) {
		return 0
	}
	return int(now.Sub(w.HireDate).Hours() / 24)
}

// Adjustment 是针对单个工人的打分修正系数
type Adjustment struct {
	WorkerID           int64   `json:"workerID"`
	Temporary          bool    `json:"temporary"`
	BanditFactor       float64 `json:"banditFactor"`
	FairnessFactor     float64 `json:"fairnessFactor"`
	SkillDecayDays     int32   `json:"skillDecayDays"`
	MaxConsecutiveDays int32   `json:"maxConsecutiveDays"`
	LearningBonus      float64 `json:"learningBonus"`
}

type ConversionCandidate struct {
	WorkerID         int64   `json:"workerID"`
	Code             string  `json:"code"`
	FullName         string  `json:"fullName"`
	DaysEmployed     int     `json:"daysEmployed"`
	AvgEfficiency    float64 `json:"avgEfficiency"`
	ReliabilityScore float64 `json:"reliabilityScore"`
	TotalAssignments int64   `json:"totalAssignments"`
	ConversionScore  float64 `json:"conversionScore"`
	Recommendation   string  `json:"recommendation"`
}
