package app

import (
	"context"
	"fmt"

	"thea/api/internal/docpath"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type CreateMilestoneInput struct {
	CustomerID    string     `json:"customerId"`
	ProjectID     string     `json:"projectId"`
	ScopeID       string     `json:"scopeId"`
	MilestoneName string     `json:"milestoneName"`
	StartDate     string     `json:"startDate"`
	EndDate       string     `json:"endDate"`
	Phase         string     `json:"phase"`
	Assignee      TeamMember `json:"assignee"`
	Notes         string     `json:"notes"`
	BusinessUnit  string     `json:"businessUnit"`
	Currency      string     `json:"currency"`
	Invoiceable   bool       `json:"invoiceable"`
	Cost          string     `json:"cost"`
}

func milestonePath(scopeID, milestoneID string) string {
	return docpath.Join("scopes", scopeID, "milestones", milestoneID)
}

// CreateMilestone inserts a new pending milestone under its scope. Returns
// the new milestone's ID.
func (s *Service) CreateMilestone(ctx context.Context, token string, in CreateMilestoneInput) (string, error) {
	if in.ScopeID == "" || in.MilestoneName == "" {
		return "", validationFailed("scopeId and milestoneName are required")
	}
	if err := s.ensureProject(ctx, in.CustomerID, in.ProjectID); err != nil {
		return "", err
	}

	milestoneID := util.NewID()
	cost := in.Cost
	if cost == "" {
		cost = "0.0"
	}
	milestone := map[string]any{
		"status":        "pending",
		"scopeId":       in.ScopeID,
		"milestoneName": in.MilestoneName,
		"creationDate":  s.todayString(),
		"startDate":     in.StartDate,
		"endDate":       in.EndDate,
		"phase":         in.Phase,
		"assignee":      in.Assignee.doc(),
		"invoiceable":   in.Invoiceable,
		"cost":          cost,
		"currency":      in.Currency,
		"businessUnit":  in.BusinessUnit,
		"notes":         in.Notes,
		"discussion":    "0",
		"milestoneId":   milestoneID,
	}

	set := map[string]any{milestonePath(in.ScopeID, milestoneID): milestone}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, milestoneID, in.ProjectID,
		[]string{fmt.Sprintf("Created new milestone: %s", in.MilestoneName)})
	return milestoneID, nil
}

// MilestoneDetails reads one milestone by its scope and ID.
func (s *Service) MilestoneDetails(ctx context.Context, customerID, projectID, scopeID, milestoneID string) (map[string]any, error) {
	path := milestonePath(scopeID, milestoneID)
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{path})
	if err != nil {
		return nil, storeError(err)
	}
	milestone, ok := docpath.GetMap(doc, path)
	if !ok {
		return nil, notFound("Invalid milestone or scope ID")
	}
	return milestone, nil
}

// MilestonesOverview lists a scope's milestones, or every scope's when
// scopeID is empty.
func (s *Service) MilestonesOverview(ctx context.Context, customerID, projectID, scopeID string) ([]map[string]any, error) {
	return s.collectionOverview(ctx, customerID, projectID, scopeID, "milestones")
}

// MilestoneUpdate is one entry of a milestone bulk update.
type MilestoneUpdate struct {
	ScopeID     string         `json:"scopeId"`
	MilestoneID string         `json:"milestoneId"`
	Fields      map[string]any `json:"fields"`
}

// UpdateMilestones applies independent partial updates and classifies the
// batch outcome.
func (s *Service) UpdateMilestones(ctx context.Context, token, customerID, projectID string, updates []MilestoneUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.ScopeID == "" || update.MilestoneID == "" {
			return nil, 0, validationFailed("scopeId and milestoneId are required")
		}
		items = append(items, batchItem{
			id:     update.MilestoneID,
			path:   milestonePath(update.ScopeID, update.MilestoneID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdate")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}
