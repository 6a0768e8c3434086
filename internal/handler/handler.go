package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/scheduler"
)

// FeedbackPublisher 把批量上报的产出反馈放入队列，由反馈消费者异步写入
type FeedbackPublisher interface {
	PublishFeedback(fb *domain.AllocationFeedback) error
}

type Handler struct {
	validate      *validator.Validate
	config        *config.Config
	repository    *repository.Repository
	scheduler     *scheduler.Scheduler
	baseScores    *cache.BaseScoreStore
	feedbackQueue FeedbackPublisher
	gatherer      prometheus.Gatherer
	translator    ut.Translator

	Mux *chi.Mux
}

func NewHandler(
	cfg *config.Config,
	repo *repository.Repository,
	sched *scheduler.Scheduler,
	baseScores *cache.BaseScoreStore,
	feedbackQueue FeedbackPublisher,
	gatherer prometheus.Gatherer,
) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:      validate,
		config:        cfg,
		repository:    repo,
		scheduler:     sched,
		baseScores:    baseScores,
		feedbackQueue: feedbackQueue,
		gatherer:      gatherer,
		translator:    trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	if h.gatherer != nil {
		h.Mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	planners := []domain.Role{domain.RoleAdmin, domain.RolePlanner}
	admins := []domain.Role{domain.RoleAdmin}

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/operators", func(r chi.Router) {
			r.Use(h.RequiredRole(admins))
			r.Post("/", h.CreateOperator)
			r.Get("/", h.GetAllOperators)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.operatorInfo)
				r.Get("/", h.GetOperator)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateOperator)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteOperator)
				r.Patch("/password", h.UpdateOperatorPassword)
			})
		})

		r.Route("/factories/{factoryID}", func(r chi.Router) {
			r.Use(h.factory)

			// 调度
			r.Post("/complexity", h.EvaluateComplexity)
			r.With(h.RequiredRole(planners)).Post("/schedule", h.Schedule)
			r.Post("/score", h.ScoreWorker)
			r.With(h.RequiredRole(planners)).Post("/optimize", h.Optimize)

			// 公平性
			r.Route("/fairness", func(r chi.Router) {
				r.Get("/", h.GetFairnessStats)
				r.Get("/violations", h.GetFairnessViolations)
				r.Get("/virtual-queue", h.GetVirtualQueue)
				r.With(h.RequiredRole(admins)).Post("/reset", h.ResetFairnessPeriod)
			})

			// 自适应调参
			r.Get("/config", h.GetSchedulingConfig)
			r.With(h.RequiredRole(admins)).Post("/adaptive-learning", h.TriggerAdaptiveLearning)
			r.Get("/adaptation-logs", h.GetAdaptationLogs)

			// SKU 复杂度
			r.Route("/skus", func(r chi.Router) {
				r.Get("/", h.GetAllSkuProfiles)
				r.Get("/drift", h.GetComplexityDrift)
				r.Route("/{skuCode}", func(r chi.Router) {
					r.Get("/", h.GetSkuProfile)
					r.With(h.RequiredRole(planners)).Put("/complexity", h.SetSkuComplexity)
					r.With(h.RequiredRole(planners)).Post("/learn", h.LearnSkuComplexity)
					r.Get("/match/{workerID}", h.GetSkuMatchScore)
				})
			})

			// 工人与临时工
			r.Route("/workers", func(r chi.Router) {
				r.Get("/", h.GetActiveWorkers)
				r.With(h.RequiredRole(planners)).Post("/", h.RegisterWorker)
				r.Get("/conversion-candidates", h.GetConversionCandidates)
				r.Route("/{workerID}", func(r chi.Router) {
					r.Use(h.workerInfo)
					r.Get("/", h.GetWorker)
					r.With(h.RequiredRole(planners)).Delete("/", h.DeleteWorker)
					r.Get("/adjustment", h.GetWorkerAdjustment)
					r.With(h.RequiredRole(admins)).Post("/convert", h.ConvertToPermanent)
					r.With(h.RequiredRole(planners)).Put("/base-score", h.SetBaseScore)
				})
			})

			// 产出反馈
			r.Route("/feedback", func(r chi.Router) {
				r.Use(h.RequiredRole(planners))
				r.Post("/", h.RecordFeedback)
				r.Post("/batch", h.EnqueueFeedback)
			})
		})
	})
}
