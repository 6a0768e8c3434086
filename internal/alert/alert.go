package alert

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/events"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var anomalyTemplate = template.Must(template.ParseFS(templateFS, "templates/anomaly_alert_email.html"))

type anomalyView struct {
	FactoryID  int64
	OccurredAt string
	Efficiency float64
	Threshold  float64
	Samples    int64
	Reason     string
}

// BuildAnomalyMessage 根据异常事件生成告警邮件
func BuildAnomalyMessage(from, to string, env *events.Envelope) (*mail.Msg, error) {
	data, err := env.Anomaly()
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	view := anomalyView{
		FactoryID:  env.FactoryID,
		OccurredAt: env.OccurredAt.Local().Format("2006-01-02 15:04:05"),
		Efficiency: data.Efficiency,
		Threshold:  data.Threshold,
		Samples:    data.Samples,
		Reason:     data.Reason,
	}
	if err := msg.SetBodyHTMLTemplate(anomalyTemplate, view); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	msg.Subject(fmt.Sprintf("ECNC 调度系统 - 工厂 %d 效率异常", env.FactoryID))

	return msg, nil
}
