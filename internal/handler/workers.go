package handler

import (
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (h *Handler) GetActiveWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.repository.GetActiveWorkers(factoryIDFrom(r))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取工人列表成功", workers)
}

func (h *Handler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code            string     `json:"code" validate:"required,max=32"`
		FullName        string     `json:"fullName" validate:"required"`
		EmploymentType  string     `json:"employmentType" validate:"required,oneof=temporary permanent"`
		HireDate        *time.Time `json:"hireDate"`
		ExpectedEndDate *time.Time `json:"expectedEndDate" validate:"required_if=EmploymentType temporary,excluded_if=EmploymentType permanent"`
		SkillLevel      int32      `json:"skillLevel" validate:"required,min=1,max=5"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	worker := &domain.Worker{
		FactoryID:       factoryIDFrom(r),
		Code:            req.Code,
		FullName:        req.FullName,
		EmploymentType:  domain.EmploymentType(req.EmploymentType),
		ExpectedEndDate: req.ExpectedEndDate,
		SkillLevel:      req.SkillLevel,
	}
	if req.HireDate != nil {
		worker.HireDate = *req.HireDate
	}

	if err := h.scheduler.TempWorkers.RegisterWorker(worker); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.scheduler.Fairness.RegisterActiveWorkers(worker.FactoryID, worker.ID)

	h.successResponse(w, r, "登记工人成功", worker)
}

func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker := r.Context().Value(WorkerCtx).(*domain.Worker)

	h.successResponse(w, r, "获取工人信息成功", struct {
		*domain.Worker
		Status       domain.WorkerStatus `json:"status"`
		DaysEmployed int                 `json:"daysEmployed"`
	}{worker, worker.Status(time.Now()), worker.DaysEmployed(time.Now())})
}

// DeleteWorker 只做软删除，历史反馈仍然保留
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	worker := r.Context().Value(WorkerCtx).(*domain.Worker)

	if err := h.repository.DeleteWorker(worker.FactoryID, worker.ID); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除工人成功", nil)
}

func (h *Handler) GetWorkerAdjustment(w http.ResponseWriter, r *http.Request) {
	worker := r.Context().Value(WorkerCtx).(*domain.Worker)

	adj, err := h.scheduler.TempWorkers.CalculateAdjustment(worker.FactoryID, worker.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取修正系数成功", adj)
}

func (h *Handler) ConvertToPermanent(w http.ResponseWriter, r *http.Request) {
	worker := r.Context().Value(WorkerCtx).(*domain.Worker)

	converted, err := h.scheduler.TempWorkers.ConvertToPermanent(worker.FactoryID, worker.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "临时工转正成功", converted)
}

func (h *Handler) GetConversionCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.scheduler.TempWorkers.GetConversionCandidates(factoryIDFrom(r))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取转正候选人成功", candidates)
}

// SetBaseScore 供外部 LinUCB 估计器回写某个工人在某道工序上的基础分
func (h *Handler) SetBaseScore(w http.ResponseWriter, r *http.Request) {
	if h.baseScores == nil {
		h.errorResponse(w, r, "未配置基础分缓存")
		return
	}

	var req struct {
		TaskType   string   `json:"taskType" validate:"required"`
		Score      *float64 `json:"score" validate:"required"`
		TTLSeconds int      `json:"ttlSeconds" validate:"min=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	worker := r.Context().Value(WorkerCtx).(*domain.Worker)
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.baseScores.SetBaseScore(worker.FactoryID, worker.ID, req.TaskType, *req.Score, ttl); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "写入基础分成功", nil)
}
