package app

import (
	"context"
	"strings"
	"time"
)

// dueSoonWindow is how far ahead of the due date an item counts as due soon.
const dueSoonWindow = 7 * 24 * time.Hour

// ProjectAnalytics recomputes the project's analytics snapshot from the
// current aggregate, persists it under the analytics path, and returns it.
func (s *Service) ProjectAnalytics(ctx context.Context, customerID, projectID string) (map[string]any, error) {
	table := s.projectsTable(customerID)
	key := projectKey(customerID, projectID)

	doc, err := s.store.Get(ctx, table, key, []string{"scopes", "dataroom"})
	if err != nil {
		return nil, storeError(err)
	}

	scopes := mapValues(doc["scopes"])
	var issues, milestones []map[string]any
	for _, scope := range scopes {
		issues = append(issues, mapValues(scope["issues"])...)
		milestones = append(milestones, mapValues(scope["milestones"])...)
	}
	documents := mapValues(doc["dataroom"])

	snapshot := map[string]any{
		"scopes": map[string]any{
			"status": statusCounts(scopes, "pending", "rejected", "accepted"),
			"time":   s.timeBuckets(scopes, "endDate", "accepted", "rejected"),
		},
		"issues": map[string]any{
			"criticality":   statusField(issues, "criticality", "high", "medium", "low"),
			"status":        withTotal(statusCounts(issues, "open", "closed"), len(issues)),
			"time":          s.timeBuckets(issues, "dueDate", "closed", "resolved"),
			"natureOfIssue": statusField(issues, "natureOfIssue"),
		},
		"milestones": map[string]any{
			"status": withTotal(statusCounts(milestones, "completed", "inProgress"), len(milestones)),
			"time":   s.timeBuckets(milestones, "endDate", "completed"),
		},
		"documents": map[string]any{
			"status": withTotal(statusCounts(documents, "requested", "submitted", "accepted", "rejected"), len(documents)),
			"time":   s.timeBuckets(documents, "dueDate", "accepted"),
		},
	}

	if err := s.store.Update(ctx, table, key, map[string]any{"analytics": snapshot}, nil); err != nil {
		return nil, storeError(err)
	}
	return snapshot, nil
}

var analyticsOverviewPaths = []string{"projectId", "projectName", "code", "status", "analytics"}

// AnalyticsOverview returns the stored analytics snapshot of every project a
// customer owns.
func (s *Service) AnalyticsOverview(ctx context.Context, customerID string) ([]map[string]any, error) {
	docs, err := s.store.Query(ctx, s.projectsTable(customerID), "customerId", customerID, analyticsOverviewPaths)
	if err != nil {
		return nil, storeError(err)
	}
	projects := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		projects = append(projects, doc)
	}
	return projects, nil
}

// statusCounts tallies the status field across items. Seeded keys always
// appear, even at zero; unexpected statuses still get counted.
func statusCounts(items []map[string]any, seed ...string) map[string]any {
	return statusField(items, "status", seed...)
}

func statusField(items []map[string]any, field string, seed ...string) map[string]any {
	counts := map[string]any{}
	for _, name := range seed {
		counts[name] = 0
	}
	for _, item := range items {
		value := stringField(item, field)
		if value == "" {
			continue
		}
		value = strings.ToLower(value[:1]) + value[1:]
		current, _ := counts[value].(int)
		counts[value] = current + 1
	}
	return counts
}

func withTotal(counts map[string]any, total int) map[string]any {
	counts["total"] = total
	return counts
}

// timeBuckets classifies each open item against its due date: overdue when
// past, dueToday when due today, dueSoon when due within the window. Items in
// a terminal status or with an unparseable date are ignored.
func (s *Service) timeBuckets(items []map[string]any, dateField string, terminalStatuses ...string) map[string]any {
	terminal := make(map[string]bool, len(terminalStatuses))
	for _, status := range terminalStatuses {
		terminal[status] = true
	}

	today, _ := time.Parse("2006-01-02", s.todayString())
	dueSoon, dueToday, overdue := 0, 0, 0
	for _, item := range items {
		if terminal[strings.ToLower(stringField(item, "status"))] {
			continue
		}
		due, err := time.Parse("2006-01-02", stringField(item, dateField))
		if err != nil {
			continue
		}
		switch {
		case due.Equal(today):
			dueToday++
		case due.Before(today):
			overdue++
		case due.Sub(today) <= dueSoonWindow:
			dueSoon++
		}
	}
	return map[string]any{"dueSoon": dueSoon, "dueToday": dueToday, "overdue": overdue}
}
