package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 14 天（小时）
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Email struct {
		AlertRecipient string `env:"ALERT_RECIPIENT,required"`
		SMTP           struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		Prefetch       int    `env:"PREFETCH" envDefault:"16"`
		FeedbackQueue  string `env:"FEEDBACK_QUEUE" envDefault:"allocation_feedback"`
		EventQueue     string `env:"EVENT_QUEUE" envDefault:"scheduler_events"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD,required"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"2"`
		BaseScorePrefix  string `env:"BASE_SCORE_PREFIX" envDefault:"linucb"`
	} `envPrefix:"REDIS_"`
	Scheduler SchedulerDefaults `envPrefix:"SCHEDULER_"`
}

// SchedulerDefaults 是新工厂第一次访问时写入的调度配置默认值
type SchedulerDefaults struct {
	AdaptiveEnabled   bool `env:"ADAPTIVE_ENABLED" envDefault:"true"`
	FairnessEnabled   bool `env:"FAIRNESS_ENABLED" envDefault:"true"`
	TempWorkerEnabled bool `env:"TEMP_WORKER_ENABLED" envDefault:"true"`

	BanditWeight           float64 `env:"BANDIT_WEIGHT" envDefault:"0.5"`
	FairnessWeight         float64 `env:"FAIRNESS_WEIGHT" envDefault:"0.2"`
	SkillMaintenanceWeight float64 `env:"SKILL_MAINTENANCE_WEIGHT" envDefault:"0.15"`
	RepetitionWeight       float64 `env:"REPETITION_WEIGHT" envDefault:"0.15"`
	ComplexityWeight       float64 `env:"COMPLEXITY_WEIGHT" envDefault:"0.15"`

	SkillDecayDays     int32 `env:"SKILL_DECAY_DAYS" envDefault:"30"`
	TempSkillDecayDays int32 `env:"TEMP_SKILL_DECAY_DAYS" envDefault:"14"`
	FairnessPeriodDays int32 `env:"FAIRNESS_PERIOD_DAYS" envDefault:"7"`
	MaxConsecutiveDays int32 `env:"MAX_CONSECUTIVE_DAYS" envDefault:"5"`

	TempBanditFactor   float64 `env:"TEMP_BANDIT_FACTOR" envDefault:"0.7"`
	TempFairnessFactor float64 `env:"TEMP_FAIRNESS_FACTOR" envDefault:"1.5"`

	LearningRate            float64 `env:"LEARNING_RATE" envDefault:"0.1"`
	EfficiencyTarget        float64 `env:"EFFICIENCY_TARGET" envDefault:"0.85"`
	DiversityTarget         float64 `env:"DIVERSITY_TARGET" envDefault:"0.6"`
	MinSamplesForAdaptation int64   `env:"MIN_SAMPLES_FOR_ADAPTATION" envDefault:"50"`
	AnomalyThreshold        float64 `env:"ANOMALY_THRESHOLD" envDefault:"0.5"`

	TunerInterval int `env:"TUNER_INTERVAL" envDefault:"3600"` // 秒
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// DefaultSchedulerDefaults 返回不依赖环境变量的默认值，供测试和种子数据使用
func DefaultSchedulerDefaults() SchedulerDefaults {
	d := SchedulerDefaults{}
	_ = env.ParseWithOptions(&d, env.Options{Environment: map[string]string{}})
	return d
}

// ForFactory 生成某个工厂的初始调度配置
func (d SchedulerDefaults) ForFactory(factoryID int64) *domain.SchedulingConfig {
	return &domain.SchedulingConfig{
		FactoryID:         factoryID,
		AdaptiveEnabled:   d.AdaptiveEnabled,
		FairnessEnabled:   d.FairnessEnabled,
		TempWorkerEnabled: d.TempWorkerEnabled,
		Weights: domain.Weights{
			Bandit:           d.BanditWeight,
			Fairness:         d.FairnessWeight,
			SkillMaintenance: d.SkillMaintenanceWeight,
			Repetition:       d.RepetitionWeight,
		}.Normalize(),
		ComplexityWeight:        d.ComplexityWeight,
		SkillDecayDays:          d.SkillDecayDays,
		TempSkillDecayDays:      d.TempSkillDecayDays,
		FairnessPeriodDays:      d.FairnessPeriodDays,
		MaxConsecutiveDays:      d.MaxConsecutiveDays,
		TempBanditFactor:        d.TempBanditFactor,
		TempFairnessFactor:      d.TempFairnessFactor,
		LearningRate:            d.LearningRate,
		EfficiencyTarget:        d.EfficiencyTarget,
		DiversityTarget:         d.DiversityTarget,
		MinSamplesForAdaptation: d.MinSamplesForAdaptation,
		AnomalyThreshold:        d.AnomalyThreshold,
	}
}
