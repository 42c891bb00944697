// Package email sends assignment notifications over the tenant's SMTP server.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"crm_routing_backend/platform/config"
)

// Sender delivers assignment notifications.
type Sender interface {
	SendAssignmentEmail(ctx context.Context, toEmail string, data AssignmentEmailData) error
}

// AssignmentEmailData fills the notification template.
type AssignmentEmailData struct {
	AgentName string
	LeadName  string
	Method    string
	Reassign  bool
}

var assignmentTemplate = template.Must(template.New("assignment").Parse(`
<html><body>
<p>Olá {{.AgentName}},</p>
{{if .Reassign}}<p>O lead <strong>{{.LeadName}}</strong> foi transferido para você.</p>
{{else}}<p>Um novo lead <strong>{{.LeadName}}</strong> foi atribuído a você.</p>{{end}}
<p>Método de distribuição: {{.Method}}.</p>
<p>Acesse o CRM para iniciar o atendimento.</p>
</body></html>`))

// SMTPSender implements Sender via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a sender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// SendAssignmentEmail notifies an agent that a lead landed on their desk.
func (s *SMTPSender) SendAssignmentEmail(ctx context.Context, toEmail string, data AssignmentEmailData) error {
	var content bytes.Buffer
	if err := assignmentTemplate.Execute(&content, data); err != nil {
		return fmt.Errorf("render assignment email: %w", err)
	}

	subject := fmt.Sprintf("Novo lead atribuído: %s", data.LeadName)
	if data.Reassign {
		subject = fmt.Sprintf("Lead transferido: %s", data.LeadName)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, content.String())

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
