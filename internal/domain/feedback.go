package domain

import "time"

// AllocationFeedback 是一次分配的实际产出，只追加不修改
type AllocationFeedback struct {
	ID         int64     `json:"id"`
	FactoryID  int64     `json:"factoryID"`
	WorkerID   int64     `json:"workerID"`
	TaskType   string    `json:"taskType"`
	SkuCode    string    `json:"skuCode"`
	Efficiency float64   `json:"efficiency"`
	Completed  bool      `json:"completed"`
	RecordedAt time.Time `json:"recordedAt"`
}
