package app

import (
	"context"
	"net/http"

	"thea/api/internal/presence"
	"thea/api/internal/workflow"
)

// WorkflowHistory lists the audit entries recorded against one entity,
// optionally filtered to a set of actions.
func (s *Service) WorkflowHistory(ctx context.Context, customerID, typeID string, actions []string) ([]workflow.Entry, error) {
	if typeID == "" {
		return nil, validationFailed("typeId is required")
	}
	entries, err := s.workflows.List(ctx, customerID, typeID, actions)
	if err != nil {
		return nil, storeError(err)
	}
	return entries, nil
}

func (s *Service) presenceConfigured() error {
	if s.presence == nil {
		return domainError(http.StatusServiceUnavailable, "PRESENCE_UNAVAILABLE", "Presence tracking is not configured", nil)
	}
	return nil
}

// Heartbeat marks one user as online on a project.
func (s *Service) Heartbeat(ctx context.Context, customerID, projectID string, record presence.Record) error {
	if err := s.presenceConfigured(); err != nil {
		return err
	}
	if record.UserID == "" {
		return validationFailed("userId is required")
	}
	if err := s.presence.Heartbeat(ctx, customerID, projectID, record); err != nil {
		return domainError(http.StatusInternalServerError, "PRESENCE_FAILURE", "Could not record presence", nil)
	}
	return nil
}

// OnlineUsers lists who is currently connected to a project.
func (s *Service) OnlineUsers(ctx context.Context, customerID, projectID string) ([]presence.Record, error) {
	if err := s.presenceConfigured(); err != nil {
		return nil, err
	}
	records, err := s.presence.Online(ctx, customerID, projectID)
	if err != nil {
		return nil, domainError(http.StatusInternalServerError, "PRESENCE_FAILURE", "Could not list online users", nil)
	}
	return records, nil
}

// Disconnect removes one user's presence from a project.
func (s *Service) Disconnect(ctx context.Context, customerID, projectID, userID string) error {
	if err := s.presenceConfigured(); err != nil {
		return err
	}
	if userID == "" {
		return validationFailed("userId is required")
	}
	if err := s.presence.Disconnect(ctx, customerID, projectID, userID); err != nil {
		return domainError(http.StatusInternalServerError, "PRESENCE_FAILURE", "Could not clear presence", nil)
	}
	return nil
}
