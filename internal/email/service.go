// Package email sends project lifecycle notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration plus the public links the templates embed.
type Config struct {
	Host        string
	Port        string
	Username    string
	Password    string
	From        string
	FromName    string
	SignupLink  string
	OnboardLink string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-thea"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type SignupData struct {
	AppName    string
	SignupLink string
}

type OnboardData struct {
	AppName        string
	OrganizationID string
	ProjectID      string
	ProjectCode    string
	OnboardingLink string
}

type OffboardData struct {
	AppName     string
	ProjectCode string
}

type IssueAssignmentData struct {
	AppName     string
	IssueName   string
	ProjectCode string
}

// SendSignupInvite asks new team members to create an account.
func (s *Service) SendSignupInvite(to []string) error {
	data := SignupData{
		AppName:    "Thea",
		SignupLink: s.config.SignupLink,
	}

	subject := "You have been invited to Thea"
	html, err := renderTemplate(signupEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render signup template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendProjectOnboarding tells team members which project they were added to
// and where to start.
func (s *Service) SendProjectOnboarding(to []string, organizationID, projectID, projectCode string) error {
	data := OnboardData{
		AppName:        "Thea",
		OrganizationID: organizationID,
		ProjectID:      projectID,
		ProjectCode:    projectCode,
		OnboardingLink: s.config.OnboardLink,
	}

	subject := fmt.Sprintf("You have been added to project %s", projectCode)
	html, err := renderTemplate(onboardEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render onboarding template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendProjectOffboarding notifies team members removed from a project.
func (s *Service) SendProjectOffboarding(to []string, projectCode string) error {
	data := OffboardData{
		AppName:     "Thea",
		ProjectCode: projectCode,
	}

	subject := fmt.Sprintf("You have been removed from project %s", projectCode)
	html, err := renderTemplate(offboardEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render offboarding template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendIssueAssignment notifies an issue owner of a newly assigned issue.
func (s *Service) SendIssueAssignment(to, issueName, projectCode string) error {
	data := IssueAssignmentData{
		AppName:     "Thea",
		IssueName:   issueName,
		ProjectCode: projectCode,
	}

	subject := fmt.Sprintf("New issue assigned to you on project %s", projectCode)
	html, err := renderTemplate(issueAssignmentEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render issue assignment template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const signupEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Join {{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0066cc; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>You have been invited</h2>

    <p>A project team on {{.AppName}} wants to work with you. Create your account to get started.</p>

    <p>
        <a href="{{.SignupLink}}" class="button">Create Account</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.SignupLink}}</p>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
    </div>
</body>
</html>`

const onboardEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Project onboarding</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .details { background: #f5f7fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Welcome to project {{.ProjectCode}}</h2>

    <p>You have been added to a project team. Keep these details handy when signing in:</p>

    <div class="details">
        <p>Organization ID: <strong>{{.OrganizationID}}</strong></p>
        <p>Project ID: <strong>{{.ProjectID}}</strong></p>
        <p>Project code: <strong>{{.ProjectCode}}</strong></p>
    </div>

    <p>
        <a href="{{.OnboardingLink}}" class="button">Go to Project</a>
    </p>

    <div class="footer">
        <p>If you believe you were added by mistake, contact your project manager.</p>
    </div>
</body>
</html>`

const offboardEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Project offboarding</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Project access removed</h2>

    <p>Your access to project <strong>{{.ProjectCode}}</strong> has ended. Any working files you need should be requested from the project team.</p>

    <div class="footer">
        <p>If you believe this was a mistake, contact your project manager.</p>
    </div>
</body>
</html>`

const issueAssignmentEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Issue assigned</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .details { background: #f5f7fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>New issue assigned to you</h2>

    <div class="details">
        <p>Issue: <strong>{{.IssueName}}</strong></p>
        <p>Project: <strong>{{.ProjectCode}}</strong></p>
    </div>

    <p>Sign in to review the issue details and its resolution path.</p>

    <div class="footer">
        <p>You are receiving this because you were named issue owner.</p>
    </div>
</body>
</html>`
