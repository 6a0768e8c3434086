package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetAllSkuProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.repository.GetAllSkuProfiles(factoryIDFrom(r))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取 SKU 列表成功", profiles)
}

func (h *Handler) GetSkuProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.scheduler.Sku.GetProfile(factoryIDFrom(r), chi.URLParam(r, "skuCode"))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取 SKU 信息成功", struct {
		Profile          any `json:"profile"`
		Complexity       int `json:"complexity"`
		MinSkillRequired int `json:"minSkillRequired"`
	}{profile, profile.EffectiveComplexity(), profile.MinSkillRequired()})
}

func (h *Handler) SetSkuComplexity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Complexity int `json:"complexity" validate:"required,min=1,max=5"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	profile, err := h.scheduler.Sku.SetComplexity(factoryIDFrom(r), chi.URLParam(r, "skuCode"), req.Complexity)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "设置 SKU 复杂度成功", profile)
}

func (h *Handler) LearnSkuComplexity(w http.ResponseWriter, r *http.Request) {
	learned, err := h.scheduler.Sku.LearnComplexity(factoryIDFrom(r), chi.URLParam(r, "skuCode"))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "学习 SKU 复杂度成功", learned)
}

func (h *Handler) GetSkuMatchScore(w http.ResponseWriter, r *http.Request) {
	workerID, err := strconv.ParseInt(chi.URLParam(r, "workerID"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "工人ID无效")
		return
	}

	skillLevel := -1
	if s := r.URL.Query().Get("skillLevel"); s != "" {
		skillLevel, err = strconv.Atoi(s)
		if err != nil || skillLevel < 0 || skillLevel > 5 {
			h.errorResponse(w, r, "技能等级无效")
			return
		}
	}

	factoryID := factoryIDFrom(r)
	if skillLevel < 0 {
		worker, err := h.scheduler.TempWorkers.GetWorker(factoryID, workerID)
		if err != nil {
			h.domainError(w, r, err)
			return
		}
		skillLevel = int(worker.SkillLevel)
	}

	score := h.scheduler.Sku.MatchScore(factoryID, workerID, chi.URLParam(r, "skuCode"), skillLevel)
	h.successResponse(w, r, "计算匹配分数成功", score)
}

func (h *Handler) GetComplexityDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.scheduler.Sku.DetectComplexityDrift(factoryIDFrom(r))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "检测复杂度偏移成功", drifts)
}
