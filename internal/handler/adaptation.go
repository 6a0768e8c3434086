package handler

import (
	"net/http"
	"strconv"
)

func (h *Handler) GetSchedulingConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.scheduler.Config(factoryIDFrom(r))
	h.successResponse(w, r, "获取调度配置成功", cfg)
}

// TriggerAdaptiveLearning 立即执行一轮自适应调参，不必等待定时任务
func (h *Handler) TriggerAdaptiveLearning(w http.ResponseWriter, r *http.Request) {
	factoryID := factoryIDFrom(r)

	if err := h.scheduler.Tuner.PerformAdaptiveLearning(factoryID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "自适应调参已执行", h.scheduler.Config(factoryID))
}

func (h *Handler) GetAdaptationLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 || l > 500 {
			h.errorResponse(w, r, "条数必须在 1 到 500 之间")
			return
		}
		limit = l
	}

	logs, err := h.scheduler.AdaptationLogs(factoryIDFrom(r), limit)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取调参日志成功", logs)
}
