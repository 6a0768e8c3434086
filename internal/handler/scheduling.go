package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (h *Handler) EvaluateComplexity(w http.ResponseWriter, r *http.Request) {
	var req domain.SchedulingContext

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	assessment := h.scheduler.Router.Evaluate(factoryIDFrom(r), req)
	h.successResponse(w, r, "评估调度复杂度成功", assessment)
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskType      string                   `json:"taskType" validate:"required"`
		SkuCode       string                   `json:"skuCode"`
		RequiredCount int                      `json:"requiredCount" validate:"required,min=1"`
		Context       domain.SchedulingContext `json:"context"`
		Candidates    []domain.Candidate       `json:"candidates" validate:"dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result := h.scheduler.Schedule(&domain.ScheduleRequest{
		FactoryID:     factoryIDFrom(r),
		TaskType:      req.TaskType,
		SkuCode:       req.SkuCode,
		RequiredCount: req.RequiredCount,
		Context:       req.Context,
		Candidates:    req.Candidates,
	})

	if result.Mode == domain.ModeHierarchicalRL {
		h.successResponse(w, r, "调度复杂度过高，请交由分层调度处理", result)
		return
	}
	h.successResponse(w, r, "调度成功", result)
}

func (h *Handler) ScoreWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID  int64   `json:"workerID" validate:"required"`
		TaskType  string  `json:"taskType" validate:"required"`
		BaseScore float64 `json:"baseScore"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	detail := h.scheduler.Scorer.Explain(factoryIDFrom(r), req.WorkerID, req.TaskType, req.BaseScore)
	h.successResponse(w, r, "计算分数成功", detail)
}

func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequiredCount int                `json:"requiredCount" validate:"required,min=1"`
		Candidates    []domain.Candidate `json:"candidates" validate:"dive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ranked := h.scheduler.Optimizer.Optimize(factoryIDFrom(r), req.RequiredCount, req.Candidates)
	h.successResponse(w, r, "优化分配成功", ranked)
}
