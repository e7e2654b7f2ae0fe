package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"thea/api/internal/auth"
	"thea/api/internal/presence"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	token, ok := s.requireToken(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "orgs" {
		s.handleOrgs(w, r, parts[2], parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "customers" {
		customerID := parts[2]

		if len(parts) >= 4 && parts[3] == "projects" {
			s.handleProjects(w, r, token, customerID, parts)
			return
		}

		if len(parts) == 4 && parts[3] == "analytics" && r.Method == http.MethodGet {
			payload, err := s.service.AnalyticsOverview(r.Context(), customerID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": payload})
			return
		}

		if len(parts) == 5 && parts[3] == "workflows" && r.Method == http.MethodGet {
			typeID := parts[4]
			actions := r.URL.Query()["action"]
			entries, err := s.service.WorkflowHistory(r.Context(), customerID, typeID, actions)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"workflows": entries})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleOrgs(w http.ResponseWriter, r *http.Request, orgID string, parts []string) {
	if len(parts) == 4 && parts[3] == "users" && r.Method == http.MethodGet {
		if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
			payload, err := s.service.GetUser(r.Context(), orgID, email)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"user": payload})
			return
		}
		users, err := s.service.UsersOverview(r.Context(), orgID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, token, customerID string, parts []string) {
	// /api/customers/{cust}/projects
	if len(parts) == 4 {
		if r.Method == http.MethodGet {
			projects, err := s.service.ProjectsOverview(r.Context(), customerID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
			return
		}
		if r.Method == http.MethodPost {
			var body CreateProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			body.CustomerID = customerID
			projectID, err := s.service.CreateProject(r.Context(), token, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"projectId": projectID})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	projectID := parts[4]

	// /api/customers/{cust}/projects/{proj}
	if len(parts) == 5 {
		if r.Method == http.MethodGet {
			payload, err := s.service.GetProjectInfo(r.Context(), customerID, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		if r.Method == http.MethodPatch {
			var body map[string]any
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateProjectInfo(r.Context(), token, customerID, projectID, body); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	section := parts[5]
	rest := parts[6:]

	switch section {
	case "members":
		s.handleProjectMembers(w, r, token, customerID, projectID, rest)
	case "scopes":
		s.handleScopes(w, r, token, customerID, projectID, rest)
	case "issues":
		s.handleIssues(w, r, token, customerID, projectID, rest)
	case "milestones":
		s.handleMilestones(w, r, token, customerID, projectID, rest)
	case "reports":
		s.handleReports(w, r, token, customerID, projectID, rest)
	case "discussions":
		s.handleDiscussions(w, r, token, customerID, projectID, rest)
	case "documents":
		s.handleDocuments(w, r, token, customerID, projectID, rest)
	case "analytics":
		if len(rest) == 0 && r.Method == http.MethodGet {
			payload, err := s.service.ProjectAnalytics(r.Context(), customerID, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case "presence":
		s.handlePresence(w, r, customerID, projectID, rest)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleProjectMembers(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodPost {
		var body struct {
			Members []TeamMember `json:"members"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.AddProjectMembers(r.Context(), token, customerID, projectID, body.Members); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleScopes(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			scopes, err := s.service.ScopesOverview(r.Context(), customerID, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"scopes": scopes})
			return
		case http.MethodPost:
			var body CreateScopeInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			body.CustomerID = customerID
			body.ProjectID = projectID
			scopeID, err := s.service.CreateScope(r.Context(), token, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"scopeId": scopeID})
			return
		case http.MethodPatch:
			var body struct {
				Updates []ScopeUpdate `json:"updates"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, status, err := s.service.UpdateScopes(r.Context(), token, customerID, projectID, body.Updates)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, status, payload)
			return
		case http.MethodDelete:
			var body struct {
				ScopeIDs []string `json:"scopeIds"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.DeleteScopes(r.Context(), token, customerID, projectID, body.ScopeIDs); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	scopeID := rest[0]

	if len(rest) == 1 && r.Method == http.MethodGet {
		payload, err := s.service.ScopeDetails(r.Context(), customerID, projectID, scopeID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(rest) == 2 && rest[1] == "members" {
		var body struct {
			Members []TeamMember `json:"members"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if err := s.service.AddScopeMembers(r.Context(), token, customerID, projectID, scopeID, body.Members); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case http.MethodDelete:
			if err := s.service.RemoveScopeMembers(r.Context(), token, customerID, projectID, scopeID, body.Members); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	// Nested entity details, e.g. scopes/{scope}/issues/{issue}
	if len(rest) == 3 && r.Method == http.MethodGet {
		var payload map[string]any
		var err error
		switch rest[1] {
		case "issues":
			payload, err = s.service.IssueDetails(r.Context(), customerID, projectID, scopeID, rest[2])
		case "milestones":
			payload, err = s.service.MilestoneDetails(r.Context(), customerID, projectID, scopeID, rest[2])
		case "reports":
			payload, err = s.service.ReportDetails(r.Context(), customerID, projectID, scopeID, rest[2])
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleIssues(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		scopeID := strings.TrimSpace(r.URL.Query().Get("scopeId"))
		issues, err := s.service.IssuesOverview(r.Context(), customerID, projectID, scopeID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
		return
	case http.MethodPost:
		var body CreateIssueInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.CustomerID = customerID
		body.ProjectID = projectID
		issueID, err := s.service.CreateIssue(r.Context(), token, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"issueId": issueID})
		return
	case http.MethodPatch:
		var body struct {
			Updates []IssueUpdate `json:"updates"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, status, err := s.service.UpdateIssues(r.Context(), token, customerID, projectID, body.Updates)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, status, payload)
		return
	case http.MethodDelete:
		var body struct {
			Issues []IssueRef `json:"issues"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.DeleteIssues(r.Context(), token, customerID, projectID, body.Issues); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleMilestones(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		scopeID := strings.TrimSpace(r.URL.Query().Get("scopeId"))
		milestones, err := s.service.MilestonesOverview(r.Context(), customerID, projectID, scopeID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"milestones": milestones})
		return
	case http.MethodPost:
		var body CreateMilestoneInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.CustomerID = customerID
		body.ProjectID = projectID
		milestoneID, err := s.service.CreateMilestone(r.Context(), token, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"milestoneId": milestoneID})
		return
	case http.MethodPatch:
		var body struct {
			Updates []MilestoneUpdate `json:"updates"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, status, err := s.service.UpdateMilestones(r.Context(), token, customerID, projectID, body.Updates)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, status, payload)
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleReports(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		scopeID := strings.TrimSpace(r.URL.Query().Get("scopeId"))
		reports, err := s.service.ReportsOverview(r.Context(), customerID, projectID, scopeID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
		return
	case http.MethodPost:
		var body CreateReportInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.CustomerID = customerID
		body.ProjectID = projectID
		reportID, err := s.service.CreateReport(r.Context(), token, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"reportId": reportID})
		return
	case http.MethodPatch:
		var body struct {
			Updates []ReportUpdate `json:"updates"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, status, err := s.service.UpdateReports(r.Context(), token, customerID, projectID, body.Updates)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, status, payload)
		return
	case http.MethodDelete:
		var body struct {
			Reports []ReportRef `json:"reports"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.DeleteReports(r.Context(), token, customerID, projectID, body.Reports); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleDiscussions(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		discussions, err := s.service.DiscussionsOverview(r.Context(), customerID, projectID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"discussions": discussions})
		return
	case http.MethodPost:
		var body CreateDiscussionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		body.CustomerID = customerID
		body.ProjectID = projectID
		discussionID, err := s.service.CreateDiscussion(r.Context(), token, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"discussionId": discussionID})
		return
	case http.MethodPatch:
		var body struct {
			Updates []DiscussionUpdate `json:"updates"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, status, err := s.service.UpdateDiscussions(r.Context(), token, customerID, projectID, body.Updates)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, status, payload)
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, token, customerID, projectID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			documents, err := s.service.DocumentsOverview(r.Context(), customerID, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
			return
		case http.MethodPost:
			var body RequestDocumentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			body.CustomerID = customerID
			body.ProjectID = projectID
			docReqID, err := s.service.RequestDocument(r.Context(), token, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"docReqId": docReqID})
			return
		case http.MethodPatch:
			var body struct {
				Updates []DocumentUpdate `json:"updates"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, status, err := s.service.UpdateDocumentRequests(r.Context(), token, customerID, projectID, body.Updates)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, status, payload)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	itemID := rest[0]

	if len(rest) == 1 && r.Method == http.MethodGet {
		payload, err := s.service.DocumentDetails(r.Context(), customerID, projectID, itemID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(rest) == 2 && rest[1] == "download-url" && r.Method == http.MethodGet {
		filename := strings.TrimSpace(r.URL.Query().Get("filename"))
		versionID := strings.TrimSpace(r.URL.Query().Get("versionId"))
		url, err := s.service.DocumentDownloadURL(r.Context(), customerID, projectID, itemID, filename, versionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"presignedUrl": url})
		return
	}

	if len(rest) == 2 && rest[1] == "upload-urls" && r.Method == http.MethodPost {
		var body struct {
			Filenames []string `json:"filenames"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		grants, err := s.service.DocumentUploadURLs(r.Context(), token, customerID, projectID, itemID, body.Filenames)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uploads": grants})
		return
	}

	if len(rest) == 2 && rest[1] == "contents" && r.Method == http.MethodGet {
		objects, err := s.service.DataroomContents(r.Context(), customerID, projectID, itemID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"contents": objects})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePresence(w http.ResponseWriter, r *http.Request, customerID, projectID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			records, err := s.service.OnlineUsers(r.Context(), customerID, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"online": records})
			return
		case http.MethodPut:
			var record presence.Record
			if err := decodeBody(r, &record); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.Heartbeat(r.Context(), customerID, projectID, record); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 && r.Method == http.MethodDelete {
		if err := s.service.Disconnect(r.Context(), customerID, projectID, rest[0]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// requireToken insists on a decodable bearer token and hands the raw token to
// the handlers, which pass it through to the audit writer.
func (s *HTTPServer) requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return "", false
	}
	if _, err := auth.DecodeClaims(token); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return "", false
	}
	return token, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
