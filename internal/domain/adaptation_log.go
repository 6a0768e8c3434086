package domain

import "time"

type AdaptationKind string

const (
	AdaptationAdjusted AdaptationKind = "adjusted"
	AdaptationAnomaly  AdaptationKind = "anomaly"
	AdaptationSkipped  AdaptationKind = "skipped"
)

type AdaptationLog struct {
	ID                 int64          `json:"id"`
	FactoryID          int64          `json:"factoryID"`
	Kind               AdaptationKind `json:"kind"`
	Reason             string         `json:"reason"`
	Before             Weights        `json:"before"`
	After              Weights        `json:"after"`
	EfficiencyMeasured float64        `json:"efficiencyMeasured"`
	DiversityMeasured  float64        `json:"diversityMeasured"`
	SampleCount        int64          `json:"sampleCount"`
	CreatedAt          time.Time      `json:"createdAt"`
}
