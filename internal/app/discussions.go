package app

import (
	"context"
	"fmt"
	"strconv"

	"thea/api/internal/docpath"
	"thea/api/internal/util"
	"thea/api/internal/workflow"
)

type CreateDiscussionInput struct {
	CustomerID  string     `json:"customerId"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Creator     TeamMember `json:"creator"`
}

func discussionPath(discussionID string) string {
	return docpath.Join("discussions", discussionID)
}

// CreateDiscussion opens a new discussion thread on the project. Returns the
// new discussion's ID.
func (s *Service) CreateDiscussion(ctx context.Context, token string, in CreateDiscussionInput) (string, error) {
	if in.Title == "" {
		return "", validationFailed("title is required")
	}
	if err := s.ensureProject(ctx, in.CustomerID, in.ProjectID); err != nil {
		return "", err
	}

	discussionID := util.NewID()
	created := strconv.FormatFloat(float64(s.today().UnixNano())/1e9, 'f', 6, 64)
	discussion := map[string]any{
		"status":       "open",
		"creator":      in.Creator.doc(),
		"title":        in.Title,
		"created":      created,
		"description":  in.Description,
		"discussionId": discussionID,
	}

	set := map[string]any{discussionPath(discussionID): discussion}
	if err := s.store.Update(ctx, s.projectsTable(in.CustomerID), projectKey(in.CustomerID, in.ProjectID), set, nil); err != nil {
		return "", storeError(err)
	}

	s.audit(ctx, token, in.CustomerID, workflow.ActionCreate, discussionID, in.ProjectID,
		[]string{fmt.Sprintf("Created new discussion: %s", in.Title)})
	return discussionID, nil
}

// DiscussionsOverview lists the project's discussions, attaching each one's
// most recent chat message.
func (s *Service) DiscussionsOverview(ctx context.Context, customerID, projectID string) ([]map[string]any, error) {
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{"discussions"})
	if err != nil {
		return nil, storeError(err)
	}

	discussions := mapValues(doc["discussions"])
	for _, discussion := range discussions {
		id := stringField(discussion, "discussionId")
		if id == "" {
			continue
		}
		last, err := s.lastMessage(ctx, customerID, id)
		if err != nil {
			return nil, err
		}
		discussion["lastMessage"] = last
	}
	return discussions, nil
}

// lastMessage returns the chat record with the greatest timestamp for one
// discussion, or nil when the thread has no messages yet.
func (s *Service) lastMessage(ctx context.Context, customerID, discussionID string) (map[string]any, error) {
	records, err := s.store.Query(ctx, s.chatTable(customerID), "itemId", discussionID, nil)
	if err != nil {
		return nil, storeError(err)
	}

	var latest map[string]any
	latestAt := 0.0
	for _, record := range records {
		at, err := strconv.ParseFloat(stringField(record, "timestamp"), 64)
		if err != nil {
			continue
		}
		if latest == nil || at > latestAt {
			latest, latestAt = record, at
		}
	}
	return latest, nil
}

// DiscussionUpdate is one entry of a discussion bulk update.
type DiscussionUpdate struct {
	DiscussionID string         `json:"discussionId"`
	Fields       map[string]any `json:"fields"`
}

// UpdateDiscussions applies independent partial updates and classifies the
// batch outcome.
func (s *Service) UpdateDiscussions(ctx context.Context, token, customerID, projectID string, updates []DiscussionUpdate) (map[string]any, int, error) {
	items := make([]batchItem, 0, len(updates))
	for _, update := range updates {
		if update.DiscussionID == "" {
			return nil, 0, validationFailed("discussionId is required")
		}
		items = append(items, batchItem{
			id:     update.DiscussionID,
			path:   discussionPath(update.DiscussionID),
			fields: update.Fields,
		})
	}
	outcome, err := s.batchUpdate(ctx, token, customerID, projectID, items, "lastUpdate")
	if err != nil {
		return nil, 0, err
	}
	return outcome.Response(), outcome.Status(), nil
}
