package app

import (
	"context"
	"fmt"

	"thea/api/internal/docpath"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type CreateScopeInput struct {
	CustomerID          string         `json:"customerId"`
	ProjectID           string         `json:"projectId"`
	ScopeName           string         `json:"scopeName"`
	StartDate           string         `json:"startDate"`
	EndDate             string         `json:"endDate"`
	Consultant          TeamMember     `json:"consultant"`
	TotalFees           string         `json:"totalFees"`
	BillingSchedule     string         `json:"billingSchedule"`
	EngagementLetterRef map[string]any `json:"engagementLetterRef"`
	TeamMembers         []TeamMember   `json:"teamMembers"`
}

func scopePath(scopeID string) string {
	return docpath.Join("scopes", scopeID)
}

// CreateScope inserts a new scope under the project, invites its team, and
// audits the creation. Returns the new scope's ID.
func (s *Service) CreateScope(ctx context.Context, token string, in CreateScopeInput) (string, error) {
	if in.ScopeName == "" {
		return "", validationFailed("scopeName is required")
	}

	code, err := s.projectCode(ctx, in.CustomerID, in.ProjectID)
	if err != nil {
		return "", err
	}

	scopeID := util.NewID()
	members := map[string]any{}
	for _, member := range in.TeamMembers {
		members[member.UserID] = member.doc()
	}
	today := s.todayString()
	scope := map[string]any{
		"scopeId":             scopeID,
		"scopeName":           in.ScopeName,
		"creationDate":        today,
		"lastUpdated":         today,
		"startDate":           in.StartDate,
		"endDate":             in.EndDate,
		"consultant":          in.Consultant.doc(),
		"totalFees":           in.TotalFees,
		"engagementLetterRef": in.EngagementLetterRef,
		"billingSchedule":     in.BillingSchedule,
		"status":              "pending",
		"teamMembers":         members,
		"issues":              map[string]any{},
		"milestones":          map[string]any{},
		"dataroom":            map[string]any{},
		"reports":             map[string]any{},
	}

	emails := memberEmails(in.TeamMembers)
	if len(emails) > 0 {
		s.notify("signup invite", func() error { return s.email.SendSignupInvite(emails) })
		s.notify("project onboarding", func() error {
			return s.email.SendProjectOnboarding(emails, in.CustomerID, in.ProjectID, code)
		})
	}

	set := map[string]any{scopePath(scopeID): scope}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, scopeID, in.ProjectID,
		[]string{fmt.Sprintf("Created scope %s", in.ScopeName)})
	return scopeID, nil
}

// ScopeDetails reads one scope's header fields, with its team as a list.
func (s *Service) ScopeDetails(ctx context.Context, customerID, projectID, scopeID string) (map[string]any, error) {
	base := scopePath(scopeID)
	paths := make([]string, 0, 8)
	for _, field := range []string{"scopeId", "scopeName", "totalFees", "endDate", "startDate", "status", "teamMembers", "lastUpdated"} {
		paths = append(paths, docpath.Join(base, field))
	}

	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), paths)
	if err != nil {
		return nil, storeError(err)
	}
	scope, ok := docpath.GetMap(doc, base)
	if !ok {
		return nil, notFound("Invalid scope ID")
	}
	scope["teamMembers"] = mapValues(scope["teamMembers"])
	return scope, nil
}

// ScopesOverview lists every scope's header fields, dropping the nested
// collections and bulky internals.
func (s *Service) ScopesOverview(ctx context.Context, customerID, projectID string) ([]map[string]any, error) {
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{"scopes"})
	if err != nil {
		return nil, storeError(err)
	}

	scopes := mapValues(doc["scopes"])
	for _, scope := range scopes {
		for _, field := range []string{"issues", "reports", "dataroom", "milestones", "billingSchedule", "creationDate", "teamMembers", "lastUpdated", "consultant"} {
			delete(scope, field)
		}
	}
	return scopes, nil
}

// ScopeUpdate is one entry of a scope bulk update.
type ScopeUpdate struct {
	ScopeID string         `json:"scopeId"`
	Fields  map[string]any `json:"fields"`
}

// UpdateScopes applies independent partial updates to a list of scopes and
// classifies the batch outcome.
func (s *Service) UpdateScopes(ctx context.Context, token, customerID, projectID string, updates []ScopeUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.ScopeID == "" {
			return nil, 0, validationFailed("scopeId is required")
		}
		items = append(items, batchItem{
			id:     update.ScopeID,
			path:   scopePath(update.ScopeID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdated")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}

// DeleteScopes removes whole scopes and audits one Delete per scope.
func (s *Service) DeleteScopes(ctx context.Context, token, customerID, projectID string, scopeIDs []string) error {
	if len(scopeIDs) == 0 {
		return validationFailed("no scopes to delete")
	}
	if err := s.ensureProject(ctx, customerID, projectID); err != nil {
		return err
	}

	remove := make([]string, 0, len(scopeIDs))
	for _, scopeID := range scopeIDs {
		remove = append(remove, scopePath(scopeID))
	}
	if err := s.store.Update(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), nil, remove); err != nil {
		return storeError(err)
	}

	for _, scopeID := range scopeIDs {
		s.audit(ctx, token, customerID, workflow.ActionDelete, scopeID, projectID,
			[]string{fmt.Sprintf("Deleted scope %s", scopeID)})
	}
	return nil
}

// AddScopeMembers merges members into a scope's team, sending the same
// invites as project onboarding.
func (s *Service) AddScopeMembers(ctx context.Context, token, customerID, projectID, scopeID string, members []TeamMember) error {
	if len(members) == 0 {
		return validationFailed("no members to add")
	}
	code, err := s.projectCode(ctx, customerID, projectID)
	if err != nil {
		return err
	}

	set := make(map[string]any, len(members))
	messages := make([]string, 0, len(members))
	for _, member := range members {
		if member.UserID == "" {
			return validationFailed("member userId is required")
		}
		set[docpath.Join(scopePath(scopeID), "teamMembers", member.UserID)] = member.doc()
		messages = append(messages, fmt.Sprintf("Added %s (%s)", member.Name, member.Email))
	}
	if err := s.store.Update(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), set, nil); err != nil {
		return storeError(err)
	}

	emails := memberEmails(members)
	if len(emails) > 0 {
		s.notify("signup invite", func() error { return s.email.SendSignupInvite(emails) })
		s.notify("project onboarding", func() error {
			return s.email.SendProjectOnboarding(emails, customerID, projectID, code)
		})
	}

	s.audit(ctx, token, customerID, workflow.ActionAdd, scopeID, projectID, messages)
	return nil
}

// RemoveScopeMembers drops members from a scope's team and sends the
// offboarding notice.
func (s *Service) RemoveScopeMembers(ctx context.Context, token, customerID, projectID, scopeID string, members []TeamMember) error {
	if len(members) == 0 {
		return validationFailed("no members to remove")
	}
	code, err := s.projectCode(ctx, customerID, projectID)
	if err != nil {
		return err
	}

	remove := make([]string, 0, len(members))
	messages := make([]string, 0, len(members))
	for _, member := range members {
		if member.UserID == "" {
			return validationFailed("member userId is required")
		}
		remove = append(remove, docpath.Join(scopePath(scopeID), "teamMembers", member.UserID))
		messages = append(messages, fmt.Sprintf("Removed %s (%s)", member.Name, member.Email))
	}
	if err := s.store.Update(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), nil, remove); err != nil {
		return storeError(err)
	}

	emails := memberEmails(members)
	if len(emails) > 0 {
		s.notify("project offboarding", func() error { return s.email.SendProjectOffboarding(emails, code) })
	}

	s.audit(ctx, token, customerID, workflow.ActionRemove, scopeID, projectID, messages)
	return nil
}
