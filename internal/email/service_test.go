package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "noreply@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "noreply@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "noreply@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderSignupTemplate(t *testing.T) {
	data := SignupData{
		AppName:    "Thea",
		SignupLink: "https://example.com/signup",
	}

	html, err := renderTemplate(signupEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Thea") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "https://example.com/signup") {
		t.Error("template should contain signup link")
	}
}

func TestRenderOnboardTemplate(t *testing.T) {
	data := OnboardData{
		AppName:        "Thea",
		OrganizationID: "org-42",
		ProjectID:      "proj-7",
		ProjectCode:    "ACME01",
		OnboardingLink: "https://example.com/onboard",
	}

	html, err := renderTemplate(onboardEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	for _, want := range []string{"org-42", "proj-7", "ACME01", "https://example.com/onboard"} {
		if !strings.Contains(html, want) {
			t.Errorf("template should contain %q", want)
		}
	}
}

func TestRenderOffboardTemplate(t *testing.T) {
	html, err := renderTemplate(offboardEmailTemplate, OffboardData{
		AppName:     "Thea",
		ProjectCode: "ACME01",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "ACME01") {
		t.Error("template should contain project code")
	}
}

func TestRenderIssueAssignmentTemplate(t *testing.T) {
	html, err := renderTemplate(issueAssignmentEmailTemplate, IssueAssignmentData{
		AppName:     "Thea",
		IssueName:   "Latency spike on checkout",
		ProjectCode: "ACME01",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "Latency spike on checkout") {
		t.Error("template should contain issue name")
	}
	if !strings.Contains(html, "ACME01") {
		t.Error("template should contain project code")
	}
}
