package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"thea/api/internal/diff"
	"thea/api/internal/store"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

// CreateProjectInput carries everything a new project aggregate needs. Code
// is optional; when empty a short code is derived from the project ID.
type CreateProjectInput struct {
	CustomerID          string       `json:"customerId"`
	ProjectName         string       `json:"projectName"`
	ProjectType         string       `json:"projectType"`
	Type                string       `json:"type"`
	BusinessUnit        string       `json:"businessUnit"`
	ClientLead          TeamMember   `json:"clientLead"`
	ProjectOwner        TeamMember   `json:"projectOwner"`
	ConsultingPartners  []TeamMember `json:"consultingPartners"`
	ConsultingCompanies string       `json:"consultingCompanies"`
	StartDate           string       `json:"startDate"`
	EndDate             string       `json:"endDate"`
	BudgetedCost        string       `json:"budgetedCost"`
	Currency            string       `json:"currency"`
	TeamMembers         []TeamMember `json:"teamMembers"`
	LinkedProjects      []string     `json:"linkedProjects"`
	Code                string       `json:"code"`
}

// analyticsSkeleton is the zero-initialized analytics snapshot every new
// project starts with: all counters literal zero, all nested maps empty.
func analyticsSkeleton() map[string]any {
	return map[string]any{
		"issues": map[string]any{
			"criticality": map[string]any{
				"high":   0,
				"medium": 0,
				"low":    0,
			},
			"status": map[string]any{"open": 0, "closed": 0, "total": 0},
			"time": map[string]any{
				"dueSoon":  0,
				"dueToday": 0,
				"overdue":  0,
			},
			"natureOfIssue": map[string]any{},
		},
		"milestones": map[string]any{
			"time": map[string]any{
				"dueSoon":  0,
				"dueToday": 0,
				"overdue":  0,
			},
			"status": map[string]any{"completed": 0, "inProgress": 0, "total": 0},
		},
		"scopes": map[string]any{
			"status": map[string]any{
				"pending":  0,
				"rejected": 0,
				"accepted": 0,
			},
			"time": map[string]any{
				"dueSoon":  0,
				"dueToday": 0,
				"overdue":  0,
			},
		},
		"documents": map[string]any{
			"time": map[string]any{
				"dueSoon":  0,
				"dueToday": 0,
				"overdue":  0,
			},
			"status": map[string]any{
				"requested": 0,
				"submitted": 0,
				"accepted":  0,
				"rejected":  0,
				"total":     0,
			},
		},
	}
}

// CreateProject seeds the whole aggregate, invites the team by email, and
// records the creation in the audit log. Returns the new project's ID.
func (s *Service) CreateProject(ctx context.Context, token string, in CreateProjectInput) (string, error) {
	if in.CustomerID == "" || in.ProjectName == "" {
		return "", validationFailed("customerId and projectName are required")
	}

	projectID := util.NewID()
	code := in.Code
	if code == "" {
		code = strings.ToUpper(projectID[:6])
	}

	members := map[string]any{}
	for _, member := range in.TeamMembers {
		members[member.UserID] = member.doc()
	}
	partners := make([]any, 0, len(in.ConsultingPartners))
	for _, partner := range in.ConsultingPartners {
		partners = append(partners, partner.doc())
	}
	linked := make([]any, 0, len(in.LinkedProjects))
	for _, id := range in.LinkedProjects {
		linked = append(linked, id)
	}

	today := s.todayString()
	doc := store.Document{
		"customerId":          in.CustomerID,
		"projectId":           projectID,
		"code":                code,
		"projectName":         in.ProjectName,
		"projectType":         in.ProjectType,
		"type":                in.Type,
		"businessUnit":        in.BusinessUnit,
		"clientLead":          in.ClientLead.doc(),
		"projectOwner":        in.ProjectOwner.doc(),
		"consultingPartners":  partners,
		"consultingCompanies": in.ConsultingCompanies,
		"status":              "active",
		"startDate":           in.StartDate,
		"endDate":             in.EndDate,
		"actualEndDate":       "",
		"budgetedCost":        in.BudgetedCost,
		"currency":            in.Currency,
		"linkedProjects":      linked,
		"creationDate":        today,
		"lastUpdated":         today,
		"FY":                  s.today().Format("2006"),
		"scopes":              map[string]any{},
		"progress":            "0.0",
		"requestsOverdue":     "0.0",
		"outstandingIssues":   "0.0",
		"costOverRun":         "0.0",
		"costOverRunPer":      "0.0",
		"forecastDelay":       "0.0",
		"teamMembers":         members,
		"dataroom":            map[string]any{},
		"analytics":           analyticsSkeleton(),
		"discussions":         map[string]any{},
	}

	if err := s.store.Put(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, projectID), doc); err != nil {
		return "", storeError(err)
	}

	emails := memberEmails(in.TeamMembers)
	if len(emails) > 0 {
		s.notify("signup invite", func() error { return s.email.SendSignupInvite(emails) })
		s.notify("project onboarding", func() error {
			return s.email.SendProjectOnboarding(emails, in.CustomerID, projectID, code)
		})
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, projectID, projectID,
		[]string{fmt.Sprintf("Created project %s", code)})

	return projectID, nil
}

var projectInfoPaths = []string{
	"projectId", "code", "projectName", "projectType", "type", "budgetedCost",
	"currency", "businessUnit", "projectOwner", "clientLead",
	"consultingPartners", "consultingCompanies", "startDate", "teamMembers",
	"progress", "requestsOverdue", "outstandingIssues", "costOverRun",
	"costOverRunPer", "forecastDelay", "FY", "scopes", "endDate",
	"actualEndDate", "status",
}

// GetProjectInfo reads one project, flattening the nested ID-keyed maps to
// lists for the client and deriving the current delay in days.
func (s *Service) GetProjectInfo(ctx context.Context, customerID, projectID string) (map[string]any, error) {
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), projectInfoPaths)
	if err != nil {
		return nil, storeError(err)
	}

	scopes := mapValues(doc["scopes"])
	for _, scope := range scopes {
		for _, collection := range []string{"issues", "reports", "dataroom", "milestones", "teamMembers"} {
			scope[collection] = mapValues(scope[collection])
		}
	}
	doc["scopes"] = scopes
	doc["teamMembers"] = mapValues(doc["teamMembers"])
	doc["delay"] = s.delayDays(stringField(doc, "endDate"))

	return doc, nil
}

var projectOverviewPaths = []string{
	"projectId", "code", "projectName", "projectType", "type", "budgetedCost",
	"currency", "businessUnit", "consultingCompanies", "endDate", "startDate",
	"teamMembers", "progress", "requestsOverdue", "outstandingIssues",
	"costOverRun", "costOverRunPer", "forecastDelay", "FY", "projectOwner",
	"clientLead", "status",
}

// ProjectsOverview lists every project of one customer via the customerId
// index.
func (s *Service) ProjectsOverview(ctx context.Context, customerID string) ([]map[string]any, error) {
	docs, err := s.store.Query(ctx, s.projectsTable(customerID), "customerId", customerID, projectOverviewPaths)
	if err != nil {
		return nil, storeError(err)
	}
	projects := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		doc["teamMembers"] = mapValues(doc["teamMembers"])
		doc["delay"] = s.delayDays(stringField(doc, "endDate"))
		projects = append(projects, doc)
	}
	return projects, nil
}

// delayDays counts whole days past the end date, zero when not yet due or
// the date is unparseable.
func (s *Service) delayDays(endDate string) int {
	due, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 0
	}
	elapsed := s.today().Sub(due)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

var projectUpdateSnapshotPaths = []string{
	"projectId", "code", "projectName", "projectType", "type", "businessUnit",
	"clientLead", "projectOwner", "consultingPartners", "status", "startDate",
	"endDate", "budgetedCost", "currency", "lastUpdated",
}

// UpdateProjectInfo applies a partial update to the project's own scalar
// fields and records the resulting diff.
func (s *Service) UpdateProjectInfo(ctx context.Context, token, customerID, projectID string, item map[string]any) error {
	if len(item) == 0 {
		return validationFailed("no fields to update")
	}

	table := s.projectsTable(customerID)
	key := projectKey(customerID, projectID)

	previous, err := s.store.Get(ctx, table, key, projectUpdateSnapshotPaths)
	if err != nil {
		return storeError(err)
	}

	item["lastUpdate"] = s.todayString()
	if err := s.store.Update(ctx, table, key, item, nil); err != nil {
		return storeError(err)
	}

	messages := diff.Changes(previous, item)
	s.audit(ctx, token, customerID, workflow.ActionUpdate, projectID, projectID, messages)
	return nil
}

// AddProjectMembers merges new members into teamMembers, invites them, and
// audits one message per member.
func (s *Service) AddProjectMembers(ctx context.Context, token, customerID, projectID string, members []TeamMember) error {
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
		set["teamMembers."+member.UserID] = member.doc()
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

	s.audit(ctx, token, customerID, workflow.ActionAdd, projectID, projectID, messages)
	return nil
}
