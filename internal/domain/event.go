package domain

import "time"

const (
	EventAdaptation = "adaptation"
	EventAnomaly    = "anomaly"
)

// SchedulerEvent 是发布到消息队列中的调度事件
type SchedulerEvent struct {
	Type       string    `json:"type"`
	FactoryID  int64     `json:"factoryID"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AnomalyEventData 对应 anomaly 类型事件的 data 字段
type AnomalyEventData struct {
	Efficiency float64 `json:"efficiency"`
	Threshold  float64 `json:"threshold"`
	Samples    int64   `json:"samples"`
	Reason     string  `json:"reason"`
}
