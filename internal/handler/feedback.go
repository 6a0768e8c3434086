package handler

import (
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

type feedbackRequest struct {
	WorkerID   int64      `json:"workerID" validate:"required"`
	TaskType   string     `json:"taskType" validate:"required"`
	SkuCode    string     `json:"skuCode"`
	Efficiency *float64   `json:"efficiency" validate:"required,min=0"`
	Completed  bool       `json:"completed"`
	RecordedAt *time.Time `json:"recordedAt"`
}

func (req feedbackRequest) toDomain(factoryID int64) *domain.AllocationFeedback {
	fb := &domain.AllocationFeedback{
		FactoryID:  factoryID,
		WorkerID:   req.WorkerID,
		TaskType:   req.TaskType,
		SkuCode:    req.SkuCode,
		Efficiency: *req.Efficiency,
		Completed:  req.Completed,
	}
	if req.RecordedAt != nil {
		fb.RecordedAt = *req.RecordedAt
	}
	return fb
}

func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	fb := req.toDomain(factoryIDFrom(r))
	if err := h.scheduler.RecordFeedback(fb); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "记录产出反馈成功", fb)
}

// EnqueueFeedback 把一批反馈放入消息队列，由反馈消费者逐条写入
func (h *Handler) EnqueueFeedback(w http.ResponseWriter, r *http.Request) {
	if h.feedbackQueue == nil {
		h.errorResponse(w, r, "未配置反馈队列")
		return
	}

	var req struct {
		Items []feedbackRequest `json:"items" validate:"required,min=1,max=1000,dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	factoryID := factoryIDFrom(r)
	for i, item := range req.Items {
		if err := h.feedbackQueue.PublishFeedback(item.toDomain(factoryID)); err != nil {
			h.logInternalServerError(r, err)
			h.writeJSON(w, r, http.StatusOK, Response{
				Success: false,
				Message: "部分产出反馈未能入队",
				Data: struct {
					Accepted int `json:"accepted"`
				}{i},
			})
			return
		}
	}

	h.successResponse(w, r, "产出反馈已入队", struct {
		Accepted int `json:"accepted"`
	}{len(req.Items)})
}
