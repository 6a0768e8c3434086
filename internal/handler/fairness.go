package handler

import (
	"net/http"
	"strconv"
)

const defaultViolationDays = 7

func (h *Handler) GetFairnessStats(w http.ResponseWriter, r *http.Request) {
	stats := h.scheduler.Fairness.GetFactoryFairnessStats(factoryIDFrom(r))
	h.successResponse(w, r, "获取公平性统计成功", stats)
}

func (h *Handler) GetFairnessViolations(w http.ResponseWriter, r *http.Request) {
	days := defaultViolationDays
	if s := r.URL.Query().Get("days"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil || d <= 0 {
			h.errorResponse(w, r, "统计天数无效")
			return
		}
		days = d
	}

	violations := h.scheduler.Fairness.DetectFairnessViolations(factoryIDFrom(r), days)
	h.successResponse(w, r, "获取公平性违规成功", violations)
}

func (h *Handler) GetVirtualQueue(w http.ResponseWriter, r *http.Request) {
	entries := h.scheduler.Fairness.Snapshot(factoryIDFrom(r))
	h.successResponse(w, r, "获取虚拟队列成功", entries)
}

func (h *Handler) ResetFairnessPeriod(w http.ResponseWriter, r *http.Request) {
	factoryID := factoryIDFrom(r)

	h.scheduler.Fairness.ResetPeriod(factoryID)
	if err := h.scheduler.Fairness.Checkpoint(factoryID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "已重置公平性周期", nil)
}
