package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"thea/api/internal/store"
	"thea/api/internal/workflow"
)

func signedToken(t *testing.T, email, name, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":           email,
		"name":            name,
		"custom:username": username,
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type fakeEmail struct {
	signups     [][]string
	onboards    []string
	offboards   []string
	assignments []string
}

func (f *fakeEmail) IsConfigured() bool { return true }

func (f *fakeEmail) SendSignupInvite(to []string) error {
	f.signups = append(f.signups, to)
	return nil
}

func (f *fakeEmail) SendProjectOnboarding(to []string, organizationID, projectID, projectCode string) error {
	f.onboards = append(f.onboards, projectCode)
	return nil
}

func (f *fakeEmail) SendProjectOffboarding(to []string, projectCode string) error {
	f.offboards = append(f.offboards, projectCode)
	return nil
}

func (f *fakeEmail) SendIssueAssignment(to, issueName, projectCode string) error {
	f.assignments = append(f.assignments, issueName)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.Memory, *fakeEmail) {
	t.Helper()
	mem := store.NewMemory()
	workflows := workflow.NewWriter(mem, "Workflows")
	mailer := &fakeEmail{}
	svc := NewService(mem, workflows, Options{Email: mailer})
	svc.today = func() time.Time { return time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc, mem, mailer
}

func TestCreateProjectSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	svc, mem, mailer := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada Lovelace", "ada")

	projectID, err := svc.CreateProject(ctx, token, CreateProjectInput{
		CustomerID:  "c1",
		ProjectName: "Merger Diligence",
		TeamMembers: []TeamMember{
			{UserID: "u1", Name: "Ada Lovelace", Email: "ada@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	doc, err := mem.Get(ctx, "Projects-c1", store.Key{"customerId": "c1", "projectId": projectID}, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if doc["status"] != "active" {
		t.Fatalf("status = %v, want active", doc["status"])
	}
	wantCode := strings.ToUpper(projectID[:6])
	if doc["code"] != wantCode {
		t.Fatalf("code = %v, want %s", doc["code"], wantCode)
	}
	if doc["progress"] != "0.0" || doc["forecastDelay"] != "0.0" {
		t.Fatalf("metric strings not zero-seeded: %v / %v", doc["progress"], doc["forecastDelay"])
	}
	if doc["creationDate"] != "2023-09-01" {
		t.Fatalf("creationDate = %v", doc["creationDate"])
	}

	scopes, ok := doc["scopes"].(map[string]any)
	if !ok || len(scopes) != 0 {
		t.Fatalf("scopes = %v, want empty map", doc["scopes"])
	}
	members, ok := doc["teamMembers"].(map[string]any)
	if !ok {
		t.Fatalf("teamMembers = %T, want map keyed by userId", doc["teamMembers"])
	}
	if _, ok := members["u1"]; !ok {
		t.Fatalf("teamMembers missing u1: %v", members)
	}

	analytics, ok := doc["analytics"].(map[string]any)
	if !ok {
		t.Fatalf("analytics missing")
	}
	issues := analytics["issues"].(map[string]any)
	criticality := issues["criticality"].(map[string]any)
	if criticality["high"] != 0 || criticality["medium"] != 0 || criticality["low"] != 0 {
		t.Fatalf("issue criticality not zeroed: %v", criticality)
	}
	nature := issues["natureOfIssue"].(map[string]any)
	if len(nature) != 0 {
		t.Fatalf("natureOfIssue = %v, want empty map", nature)
	}
	documents := analytics["documents"].(map[string]any)
	docStatus := documents["status"].(map[string]any)
	if docStatus["requested"] != 0 || docStatus["total"] != 0 {
		t.Fatalf("document status not zeroed: %v", docStatus)
	}

	if len(mailer.signups) != 1 || len(mailer.onboards) != 1 {
		t.Fatalf("expected signup and onboarding emails, got %d / %d", len(mailer.signups), len(mailer.onboards))
	}
}

func seedProjectWithScope(t *testing.T, svc *Service, token string) (projectID, scopeID string) {
	t.Helper()
	ctx := context.Background()
	projectID, err := svc.CreateProject(ctx, token, CreateProjectInput{
		CustomerID:  "c1",
		ProjectName: "Merger Diligence",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	scopeID, err = svc.CreateScope(ctx, token, CreateScopeInput{
		CustomerID: "c1",
		ProjectID:  projectID,
		ScopeName:  "Financial Review",
	})
	if err != nil {
		t.Fatalf("CreateScope: %v", err)
	}
	return projectID, scopeID
}

func TestCreateIssueDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	issueID, err := svc.CreateIssue(ctx, token, CreateIssueInput{
		CustomerID:  "c1",
		ProjectID:   projectID,
		ScopeID:     scopeID,
		IssueName:   "Latency spike",
		Criticality: "low",
		IssueOwner:  TeamMember{UserID: "u2", Name: "Grace", Email: "grace@example.com"},
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	issue, err := svc.IssueDetails(ctx, "c1", projectID, scopeID, issueID)
	if err != nil {
		t.Fatalf("IssueDetails: %v", err)
	}
	if issue["status"] != "open" {
		t.Fatalf("status = %v, want open", issue["status"])
	}
	if issue["lastUpdated"] != "2023-09-01" {
		t.Fatalf("lastUpdated = %v", issue["lastUpdated"])
	}
	if issue["issueId"] != issueID {
		t.Fatalf("issueId = %v, want %s", issue["issueId"], issueID)
	}

	if len(mailer.assignments) != 1 || mailer.assignments[0] != "Latency spike" {
		t.Fatalf("expected one assignment email, got %v", mailer.assignments)
	}
}

func TestUpdateIssuesDiffsAndAudits(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	issueID, err := svc.CreateIssue(ctx, token, CreateIssueInput{
		CustomerID:  "c1",
		ProjectID:   projectID,
		ScopeID:     scopeID,
		IssueName:   "Latency spike",
		Criticality: "low",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	payload, status, err := svc.UpdateIssues(ctx, token, "c1", projectID, []IssueUpdate{
		{ScopeID: scopeID, IssueID: issueID, Fields: map[string]any{"criticality": "high"}},
	})
	if err != nil {
		t.Fatalf("UpdateIssues: %v", err)
	}
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	success := payload["success"].([]string)
	if len(success) != 1 || success[0] != issueID {
		t.Fatalf("success = %v, want [%s]", success, issueID)
	}

	entries, err := svc.WorkflowHistory(ctx, "c1", issueID, []string{workflow.ActionUpdate})
	if err != nil {
		t.Fatalf("WorkflowHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d Update entries, want 1", len(entries))
	}
	if len(entries[0].Meta) != 1 || entries[0].Meta[0] != "Updated 'criticality' from 'low' to 'high'" {
		t.Fatalf("meta = %v", entries[0].Meta)
	}
	if entries[0].Email != "ada@example.com" {
		t.Fatalf("entry email = %q", entries[0].Email)
	}
}

func TestUpdateIssuesNoChangeWritesNoAudit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	issueID, err := svc.CreateIssue(ctx, token, CreateIssueInput{
		CustomerID:  "c1",
		ProjectID:   projectID,
		ScopeID:     scopeID,
		IssueName:   "Latency spike",
		Criticality: "low",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	_, status, err := svc.UpdateIssues(ctx, token, "c1", projectID, []IssueUpdate{
		{ScopeID: scopeID, IssueID: issueID, Fields: map[string]any{"criticality": "low"}},
	})
	if err != nil {
		t.Fatalf("UpdateIssues: %v", err)
	}
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}

	entries, err := svc.WorkflowHistory(ctx, "c1", issueID, []string{workflow.ActionUpdate})
	if err != nil {
		t.Fatalf("WorkflowHistory: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("no-change update still audited: %v", entries)
	}
}

func TestUpdateIssuesWithoutFieldsStillStamps(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	issueID, err := svc.CreateIssue(ctx, token, CreateIssueInput{
		CustomerID: "c1",
		ProjectID:  projectID,
		ScopeID:    scopeID,
		IssueName:  "Latency spike",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	// A wire entry with no fields object decodes to a nil map.
	payload, status, err := svc.UpdateIssues(ctx, token, "c1", projectID, []IssueUpdate{
		{ScopeID: scopeID, IssueID: issueID},
	})
	if err != nil {
		t.Fatalf("UpdateIssues: %v", err)
	}
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	success := payload["success"].([]string)
	if len(success) != 1 || success[0] != issueID {
		t.Fatalf("success = %v, want [%s]", success, issueID)
	}

	issue, err := svc.IssueDetails(ctx, "c1", projectID, scopeID, issueID)
	if err != nil {
		t.Fatalf("IssueDetails: %v", err)
	}
	if issue["lastUpdate"] != "2023-09-01" {
		t.Fatalf("lastUpdate = %v, want stamped date", issue["lastUpdate"])
	}
}

func TestUpdateMilestonesSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	var milestoneIDs []string
	for _, name := range []string{"Kickoff", "Fieldwork"} {
		id, err := svc.CreateMilestone(ctx, token, CreateMilestoneInput{
			CustomerID:    "c1",
			ProjectID:     projectID,
			ScopeID:       scopeID,
			MilestoneName: name,
		})
		if err != nil {
			t.Fatalf("CreateMilestone: %v", err)
		}
		milestoneIDs = append(milestoneIDs, id)
	}

	payload, status, err := svc.UpdateMilestones(ctx, token, "c1", projectID, []MilestoneUpdate{
		{ScopeID: scopeID, MilestoneID: milestoneIDs[0], Fields: map[string]any{"status": "inProgress"}},
		{ScopeID: scopeID, MilestoneID: milestoneIDs[1], Fields: map[string]any{"status": "completed"}},
		{ScopeID: scopeID, MilestoneID: "no-such-milestone", Fields: map[string]any{"status": "completed"}},
	})
	if err != nil {
		t.Fatalf("UpdateMilestones: %v", err)
	}
	if status != 200 {
		t.Fatalf("status = %d, want 200 when failures are only skips", status)
	}
	if got := len(payload["success"].([]string)); got != 2 {
		t.Fatalf("success count = %d, want 2", got)
	}
	if got := len(payload["fail"].([]string)); got != 0 {
		t.Fatalf("fail count = %d, want 0", got)
	}
}

func TestUpdateScopesAllUnknownIsNotModified(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, _ := seedProjectWithScope(t, svc, token)

	_, status, err := svc.UpdateScopes(ctx, token, "c1", projectID, []ScopeUpdate{
		{ScopeID: "ghost-1", Fields: map[string]any{"status": "accepted"}},
		{ScopeID: "ghost-2", Fields: map[string]any{"status": "accepted"}},
	})
	if err != nil {
		t.Fatalf("UpdateScopes: %v", err)
	}
	if status != 304 {
		t.Fatalf("status = %d, want 304 when every ID is unknown", status)
	}
}

func TestDeleteIssuesRemovesScopedEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	issueID, err := svc.CreateIssue(ctx, token, CreateIssueInput{
		CustomerID: "c1",
		ProjectID:  projectID,
		ScopeID:    scopeID,
		IssueName:  "Latency spike",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	if err := svc.DeleteIssues(ctx, token, "c1", projectID, []IssueRef{{ScopeID: scopeID, IssueID: issueID}}); err != nil {
		t.Fatalf("DeleteIssues: %v", err)
	}

	if _, err := svc.IssueDetails(ctx, "c1", projectID, scopeID, issueID); err == nil {
		t.Fatalf("deleted issue still readable")
	}
	// The scope itself survives the removal.
	if _, err := svc.ScopeDetails(ctx, "c1", projectID, scopeID); err != nil {
		t.Fatalf("ScopeDetails after delete: %v", err)
	}
}

func TestProjectAnalyticsRecomputesAndPersists(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	for _, criticality := range []string{"high", "high", "low"} {
		if _, err := svc.CreateIssue(ctx, token, CreateIssueInput{
			CustomerID:  "c1",
			ProjectID:   projectID,
			ScopeID:     scopeID,
			IssueName:   "issue",
			Criticality: criticality,
			DueDate:     "2023-08-15",
		}); err != nil {
			t.Fatalf("CreateIssue: %v", err)
		}
	}

	snapshot, err := svc.ProjectAnalytics(ctx, "c1", projectID)
	if err != nil {
		t.Fatalf("ProjectAnalytics: %v", err)
	}

	issues := snapshot["issues"].(map[string]any)
	criticality := issues["criticality"].(map[string]any)
	if criticality["high"] != 2 || criticality["low"] != 1 || criticality["medium"] != 0 {
		t.Fatalf("criticality = %v", criticality)
	}
	status := issues["status"].(map[string]any)
	if status["open"] != 3 || status["total"] != 3 {
		t.Fatalf("issue status = %v", status)
	}
	// All three issues are past their 2023-08-15 due date on 2023-09-01.
	timing := issues["time"].(map[string]any)
	if timing["overdue"] != 3 {
		t.Fatalf("issue time = %v", timing)
	}

	doc, err := mem.Get(ctx, "Projects-c1", store.Key{"customerId": "c1", "projectId": projectID}, []string{"analytics"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	persisted, ok := doc["analytics"].(map[string]any)
	if !ok {
		t.Fatalf("analytics not persisted")
	}
	persistedIssues := persisted["issues"].(map[string]any)
	persistedCriticality := persistedIssues["criticality"].(map[string]any)
	if persistedCriticality["high"] != 2 {
		t.Fatalf("persisted criticality = %v", persistedCriticality)
	}
}

func TestScopeMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, scopeID := seedProjectWithScope(t, svc, token)

	member := TeamMember{UserID: "u7", Name: "Grace", Email: "grace@example.com"}
	if err := svc.AddScopeMembers(ctx, token, "c1", projectID, scopeID, []TeamMember{member}); err != nil {
		t.Fatalf("AddScopeMembers: %v", err)
	}

	scope, err := svc.ScopeDetails(ctx, "c1", projectID, scopeID)
	if err != nil {
		t.Fatalf("ScopeDetails: %v", err)
	}
	members := scope["teamMembers"].([]map[string]any)
	if len(members) != 1 || members[0]["userId"] != "u7" {
		t.Fatalf("teamMembers = %v", members)
	}

	if err := svc.RemoveScopeMembers(ctx, token, "c1", projectID, scopeID, []TeamMember{member}); err != nil {
		t.Fatalf("RemoveScopeMembers: %v", err)
	}
	if len(mailer.offboards) != 1 {
		t.Fatalf("expected one offboarding email, got %d", len(mailer.offboards))
	}

	scope, err = svc.ScopeDetails(ctx, "c1", projectID, scopeID)
	if err != nil {
		t.Fatalf("ScopeDetails: %v", err)
	}
	if got := len(scope["teamMembers"].([]map[string]any)); got != 0 {
		t.Fatalf("teamMembers after removal = %d, want 0", got)
	}
}

func TestDiscussionsOverviewAttachesLastMessage(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService(t)
	token := signedToken(t, "ada@example.com", "Ada", "ada")
	projectID, _ := seedProjectWithScope(t, svc, token)

	discussionID, err := svc.CreateDiscussion(ctx, token, CreateDiscussionInput{
		CustomerID: "c1",
		ProjectID:  projectID,
		Title:      "Valuation assumptions",
	})
	if err != nil {
		t.Fatalf("CreateDiscussion: %v", err)
	}

	for i, message := range []string{"first", "second"} {
		doc := store.Document{
			"itemId":    discussionID,
			"messageId": "m" + string(rune('1'+i)),
			"message":   message,
			"timestamp": []string{"1693526400.000000", "1693530000.000000"}[i],
		}
		key := store.Key{"itemId": discussionID, "messageId": doc["messageId"].(string)}
		if err := mem.Put(ctx, "ChatRecords-c1", key, doc); err != nil {
			t.Fatalf("Put chat record: %v", err)
		}
	}

	discussions, err := svc.DiscussionsOverview(ctx, "c1", projectID)
	if err != nil {
		t.Fatalf("DiscussionsOverview: %v", err)
	}
	if len(discussions) != 1 {
		t.Fatalf("got %d discussions, want 1", len(discussions))
	}
	last, ok := discussions[0]["lastMessage"].(map[string]any)
	if !ok {
		t.Fatalf("lastMessage missing: %v", discussions[0])
	}
	if last["message"] != "second" {
		t.Fatalf("lastMessage = %v, want the latest timestamp", last)
	}
}
