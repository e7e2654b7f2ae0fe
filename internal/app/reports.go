package app

import (
	"context"
	"fmt"

	"thea/api/internal/docpath"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type CreateReportInput struct {
	CustomerID  string     `json:"customerId"`
	ProjectID   string     `json:"projectId"`
	ScopeID     string     `json:"scopeId"`
	Name        string     `json:"name"`
	DueDate     string     `json:"dueDate"`
	RequestedBy TeamMember `json:"requestedBy"`
	SubmittedBy TeamMember `json:"submittedBy"`
	Description string     `json:"description"`
}

func reportPath(scopeID, reportID string) string {
	return docpath.Join("scopes", scopeID, "reports", reportID)
}

// CreateReport inserts a new pending report under its scope. Returns the new
// report's ID.
func (s *Service) CreateReport(ctx context.Context, token string, in CreateReportInput) (string, error) {
	if in.ScopeID == "" || in.Name == "" {
		return "", validationFailed("scopeId and name are required")
	}
	if err := s.ensureProject(ctx, in.CustomerID, in.ProjectID); err != nil {
		return "", err
	}

	reportID := util.NewID()
	today := s.todayString()
	report := map[string]any{
		"name":        in.Name,
		"dueDate":     in.DueDate,
		"requestedBy": in.RequestedBy.doc(),
		"submittedBy": in.SubmittedBy.doc(),
		"description": in.Description,
		"status":      "pending",
		"created":     today,
		"lastUpdate":  today,
		"scopeId":     in.ScopeID,
		"reportId":    reportID,
	}

	set := map[string]any{reportPath(in.ScopeID, reportID): report}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, reportID, in.ProjectID,
		[]string{fmt.Sprintf("Created new report: %s", in.Name)})
	return reportID, nil
}

// ReportDetails reads one report by its scope and ID.
func (s *Service) ReportDetails(ctx context.Context, customerID, projectID, scopeID, reportID string) (map[string]any, error) {
	path := reportPath(scopeID, reportID)
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{path})
	if err != nil {
		return nil, storeError(err)
	}
	report, ok := docpath.GetMap(doc, path)
	if !ok {
		return nil, notFound("Invalid report or scope ID")
	}
	return report, nil
}

// ReportsOverview lists a scope's reports, or every scope's when scopeID is
// empty.
func (s *Service) ReportsOverview(ctx context.Context, customerID, projectID, scopeID string) ([]map[string]any, error) {
	return s.collectionOverview(ctx, customerID, projectID, scopeID, "reports")
}

// ReportUpdate is one entry of a report bulk update.
type ReportUpdate struct {
	ScopeID  string         `json:"scopeId"`
	ReportID string         `json:"reportId"`
	Fields   map[string]any `json:"fields"`
}

// UpdateReports applies independent partial updates and classifies the batch
// outcome.
func (s *Service) UpdateReports(ctx context.Context, token, customerID, projectID string, updates []ReportUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.ScopeID == "" || update.ReportID == "" {
			return nil, 0, validationFailed("scopeId and reportId are required")
		}
		items = append(items, batchItem{
			id:     update.ReportID,
			path:   reportPath(update.ScopeID, update.ReportID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdate")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}

// ReportRef addresses one report inside its scope.
type ReportRef struct {
	ScopeID  string `json:"scopeId"`
	ReportID string `json:"reportId"`
}

// DeleteReports removes reports from their scopes and audits one Delete per
// report.
func (s *Service) DeleteReports(ctx context.Context, token, customerID, projectID string, reports []ReportRef) error {
	if len(reports) == 0 {
		return validationFailed("no reports to delete")
	}
	if err := s.ensureProject(ctx, customerID, projectID); err != nil {
		return err
	}

	remove := make([]string, 0, len(reports))
	for _, ref := range reports {
		if ref.ScopeID == "" || ref.ReportID == "" {
			return validationFailed("scopeId and reportId are required")
		}
		remove = append(remove, reportPath(ref.ScopeID, ref.ReportID))
	}
	if err := s.store.Update(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), nil, remove); err != nil {
		return storeError(err)
	}

	for _, ref := range reports {
		s.audit(ctx, token, customerID, workflow.ActionDelete, ref.ReportID, projectID,
			[]string{fmt.Sprintf("Deleted report %s", ref.ReportID)})
	}
	return nil
}
