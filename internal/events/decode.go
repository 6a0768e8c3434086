package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

var ErrUnexpectedEventType = errors.New("事件类型不匹配")

// Envelope 是消费端看到的调度事件，data 字段延迟解析
type Envelope struct {
	Type       string          `json:"type"`
	FactoryID  int64           `json:"factoryID"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("无法解析调度事件: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("调度事件缺少类型")
	}
	return &env, nil
}

func (e *Envelope) Anomaly() (*domain.AnomalyEventData, error) {
	if e.Type != domain.EventAnomaly {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedEventType, e.Type)
	}

	var data domain.AnomalyEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("无法解析异常事件数据: %w", err)
	}
	return &data, nil
}

func DecodeFeedback(body []byte) (*domain.AllocationFeedback, error) {
	var fb domain.AllocationFeedback
	if err := json.Unmarshal(body, &fb); err != nil {
		return nil, fmt.Errorf("无法解析产出反馈: %w", err)
	}
	return &fb, nil
}
