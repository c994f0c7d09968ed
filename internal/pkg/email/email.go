package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/callsight/callqa_go_server/config"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// ReportData 质检报告邮件内容
type ReportData struct {
	RecordingTitle      string
	Overall             float64
	CustomerService     float64
	ProductKnowledge    float64
	CommunicationSkills float64
	ComplianceAdherence float64
	Summary             string
	Strengths           []string
	Improvements        []string
	RequiredMisses      []string // 未命中的必说话术
	ProhibitedHits      []string // 出现的违禁话术
}

// SendScoreReport 发送质检报告邮件
func (s *Service) SendScoreReport(to string, data *ReportData) error {
	subject := fmt.Sprintf("质检报告 - %s", data.RecordingTitle)
	return s.SendReport(to, subject, buildReportHTML(data))
}

// SendReport 发送 HTML 报告邮件
func (s *Service) SendReport(to, subject, htmlBody string) error {
	return s.sendHTML(to, subject, htmlBody)
}

func buildReportHTML(data *ReportData) string {
	var rows strings.Builder
	writeRow := func(name string, score float64) {
		rows.WriteString(fmt.Sprintf(`
        <tr>
            <td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td>
            <td style="padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: right;">%.2f</td>
        </tr>`, name, score))
	}
	writeRow("客户服务", data.CustomerService)
	writeRow("产品知识", data.ProductKnowledge)
	writeRow("沟通技巧", data.CommunicationSkills)
	writeRow("合规遵循", data.ComplianceAdherence)

	var listHTML func(title string, items []string) string
	listHTML = func(title string, items []string) string {
		if len(items) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("<h3 style=\"color: #2563eb;\">%s</h3><ul>", title))
		for _, item := range items {
			b.WriteString(fmt.Sprintf("<li>%s</li>", item))
		}
		b.WriteString("</ul>")
		return b.String()
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">通话质检报告</h2>
        <p>录音：%s</p>
        <div style="background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 28px; font-weight: bold; margin: 20px 0;">
            综合得分 %.2f
        </div>
        <table style="width: 100%%; border-collapse: collapse;">%s</table>
        <p style="margin-top: 20px;">%s</p>
        %s
        %s
        %s
        %s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, data.RecordingTitle, data.Overall, rows.String(), data.Summary,
		listHTML("亮点", data.Strengths),
		listHTML("改进建议", data.Improvements),
		listHTML("未命中的必说话术", data.RequiredMisses),
		listHTML("出现的违禁话术", data.ProhibitedHits))
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := make(map[string]string)
	headers["From"] = s.cfg.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
