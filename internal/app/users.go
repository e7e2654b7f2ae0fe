package app

import (
	"context"

	"thea/api/internal/store"
)

var userPaths = []string{"userId", "orgId", "name", "email", "username", "userType"}

// GetUser reads one user of an organization by email.
func (s *Service) GetUser(ctx context.Context, orgID, email string) (map[string]any, error) {
	if orgID == "" || email == "" {
		return nil, validationFailed("orgId and email are required")
	}
	doc, err := s.store.Get(ctx, s.usersTable, store.Key{"email": email, "orgId": orgID}, userPaths)
	if err != nil {
		return nil, storeError(err)
	}
	return doc, nil
}

// UsersOverview lists every user of an organization via the orgId index.
func (s *Service) UsersOverview(ctx context.Context, orgID string) ([]map[string]any, error) {
	if orgID == "" {
		return nil, validationFailed("orgId is required")
	}
	docs, err := s.store.Query(ctx, s.usersTable, "orgId", orgID, userPaths)
	if err != nil {
		return nil, storeError(err)
	}
	users := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc)
	}
	return users, nil
}
