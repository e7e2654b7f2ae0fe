package app

import (
	"context"
	"fmt"

	"thea/api/internal/docpath"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type CreateIssueInput struct {
	CustomerID       string         `json:"customerId"`
	ProjectID        string         `json:"projectId"`
	ScopeID          string         `json:"scopeId"`
	IssueName        string         `json:"issueName"`
	Region           string         `json:"region"`
	BusinessUnit     string         `json:"businessUnit"`
	DateOfRaise      string         `json:"dateOfRaise"`
	DueDate          string         `json:"dueDate"`
	NatureOfIssue    string         `json:"natureOfIssue"`
	Criticality      string         `json:"criticality"`
	IssueDescription string         `json:"issueDescription"`
	ImpactValue      string         `json:"impactValue"`
	Currency         string         `json:"currency"`
	ImpactOn         string         `json:"impactOn"`
	DocumentRef      map[string]any `json:"documentRef"`
	IssueOwner       TeamMember     `json:"issueOwner"`
	ResolutionPath   string         `json:"resolutionPath"`
}

func issuePath(scopeID, issueID string) string {
	return docpath.Join("scopes", scopeID, "issues", issueID)
}

// CreateIssue inserts a new open issue under its scope and notifies the
// issue owner. Returns the new issue's ID.
func (s *Service) CreateIssue(ctx context.Context, token string, in CreateIssueInput) (string, error) {
	if in.ScopeID == "" || in.IssueName == "" {
		return "", validationFailed("scopeId and issueName are required")
	}

	code, err := s.projectCode(ctx, in.CustomerID, in.ProjectID)
	if err != nil {
		return "", err
	}

	issueID := util.NewID()
	issue := map[string]any{
		"scopeId":          in.ScopeID,
		"issueName":        in.IssueName,
		"region":           in.Region,
		"businessUnit":     in.BusinessUnit,
		"dateOfRaise":      in.DateOfRaise,
		"dueDate":          in.DueDate,
		"natureOfIssue":    in.NatureOfIssue,
		"criticality":      in.Criticality,
		"issueDescription": in.IssueDescription,
		"status":           "open",
		"impactValue":      in.ImpactValue,
		"currency":         in.Currency,
		"impactOn":         in.ImpactOn,
		"documentRef":      in.DocumentRef,
		"issueOwner":       in.IssueOwner.doc(),
		"resolutionPath":   in.ResolutionPath,
		"lastUpdated":      s.todayString(),
		"issueId":          issueID,
	}

	if in.IssueOwner.Email != "" {
		s.notify("issue assignment", func() error {
			return s.email.SendIssueAssignment(in.IssueOwner.Email, in.IssueName, code)
		})
	}

	set := map[string]any{issuePath(in.ScopeID, issueID): issue}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, issueID, in.ProjectID,
		[]string{fmt.Sprintf("Created new issue: %s", in.IssueName)})
	return issueID, nil
}

// IssueDetails reads one issue by its scope and ID.
func (s *Service) IssueDetails(ctx context.Context, customerID, projectID, scopeID, issueID string) (map[string]any, error) {
	path := issuePath(scopeID, issueID)
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{path})
	if err != nil {
		return nil, storeError(err)
	}
	issue, ok := docpath.GetMap(doc, path)
	if !ok {
		return nil, notFound("Invalid issue or scope ID")
	}
	return issue, nil
}

// IssuesOverview lists a scope's issues, or every scope's issues when
// scopeID is empty.
func (s *Service) IssuesOverview(ctx context.Context, customerID, projectID, scopeID string) ([]map[string]any, error) {
	return s.collectionOverview(ctx, customerID, projectID, scopeID, "issues")
}

// collectionOverview flattens one nested collection (issues, milestones,
// reports) across one or all scopes.
func (s *Service) collectionOverview(ctx context.Context, customerID, projectID, scopeID, collection string) ([]map[string]any, error) {
	table := s.projectsTable(customerID)
	key := projectKey(customerID, projectID)

	if scopeID != "" {
		path := docpath.Join("scopes", scopeID, collection)
		doc, err := s.store.Get(ctx, table, key, []string{path})
		if err != nil {
			return nil, storeError(err)
		}
		value, _ := docpath.Get(doc, path)
		return mapValues(value), nil
	}

	doc, err := s.store.Get(ctx, table, key, []string{"scopes"})
	if err != nil {
		return nil, storeError(err)
	}
	var entries []map[string]any
	for _, scope := range mapValues(doc["scopes"]) {
		entries = append(entries, mapValues(scope[collection])...)
	}
	if entries == nil {
		entries = []map[string]any{}
	}
	return entries, nil
}

// IssueUpdate is one entry of an issue bulk update.
type IssueUpdate struct {
	ScopeID string         `json:"scopeId"`
	IssueID string         `json:"issueId"`
	Fields  map[string]any `json:"fields"`
}

// UpdateIssues applies independent partial updates, stamping lastUpdate on
// each touched issue, and classifies the batch outcome.
func (s *Service) UpdateIssues(ctx context.Context, token, customerID, projectID string, updates []IssueUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.ScopeID == "" || update.IssueID == "" {
			return nil, 0, validationFailed("scopeId and issueId are required")
		}
		items = append(items, batchItem{
			id:     update.IssueID,
			path:   issuePath(update.ScopeID, update.IssueID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdate")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}

// IssueRef addresses one issue inside its scope.
type IssueRef struct {
	ScopeID string `json:"scopeId"`
	IssueID string `json:"issueId"`
}

// DeleteIssues removes issues from their scopes and audits one Delete per
// issue.
func (s *Service) DeleteIssues(ctx context.Context, token, customerID, projectID string, issues []IssueRef) error {
	if len(issues) == 0 {
		return validationFailed("no issues to delete")
	}
	if err := s.ensureProject(ctx, customerID, projectID); err != nil {
		return err
	}

	remove := make([]string, 0, len(issues))
	for _, ref := range issues {
		if ref.ScopeID == "" || ref.IssueID == "" {
			return validationFailed("scopeId and issueId are required")
		}
		remove = append(remove, issuePath(ref.ScopeID, ref.IssueID))
	}
	if err := s.store.Update(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), nil, remove); err != nil {
		return storeError(err)
	}

	for _, ref := range issues {
		s.audit(ctx, token, customerID, workflow.ActionDelete, ref.IssueID, projectID,
			[]string{fmt.Sprintf("Deleted issue %s", ref.IssueID)})
	}
	return nil
}
