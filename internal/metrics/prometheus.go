package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

// Collector 用 Prometheus 计数器记录调度核心的运行情况
type Collector struct {
	modes       *prometheus.CounterVec
	adaptations *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
}

// New 创建并注册所有指标，reg 为空时使用默认注册器，namespace 为空时使用 allocator
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "allocator"
	}

	c := &Collector{
		modes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "schedule_mode_total",
			Help:      "Scheduling requests by recommended mode.",
		}, []string{"mode"}),
		adaptations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "adaptations_total",
			Help:      "Adaptive tuning passes by factory and outcome.",
		}, []string{"factory", "kind"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "anomalies_total",
			Help:      "Efficiency anomalies detected by factory.",
		}, []string{"factory"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "fallbacks_total",
			Help:      "Collaborator failures replaced by neutral defaults, by component.",
		}, []string{"component"}),
	}

	for _, collector := range []prometheus.Collector{c.modes, c.adaptations, c.anomalies, c.fallbacks} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) ObserveMode(mode domain.Mode) {
	c.modes.WithLabelValues(string(mode)).Inc()
}

func (c *Collector) IncAdaptation(factoryID int64, kind domain.AdaptationKind) {
	c.adaptations.WithLabelValues(strconv.FormatInt(factoryID, 10), string(kind)).Inc()
}

func (c *Collector) IncAnomaly(factoryID int64) {
	c.anomalies.WithLabelValues(strconv.FormatInt(factoryID, 10)).Inc()
}

func (c *Collector) IncFallback(component string) {
	c.fallbacks.WithLabelValues(component).Inc()
}
