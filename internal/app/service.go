// Package app holds the entity services: each operation resolves a nested
// address inside the project aggregate, applies a partial update, diffs
// against the prior state for the audit trail, and classifies batch outcomes.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	"thea/api/internal/batch"
	"thea/api/internal/diff"
	"thea/api/internal/docpath"
	"thea/api/internal/files"
	"thea/api/internal/presence"
	"thea/api/internal/store"
	"thea/api/internal/workflow"
)

// TeamMember is the wire shape of one project or scope member.
type TeamMember struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
}

func (m TeamMember) doc() map[string]any {
	member := map[string]any{
		"userId": m.UserID,
		"name":   m.Name,
		"email":  m.Email,
	}
	if m.Role != "" {
		member["role"] = m.Role
	}
	return member
}

func memberEmails(members []TeamMember) []string {
	emails := make([]string, 0, len(members))
	for _, member := range members {
		if member.Email != "" {
			emails = append(emails, member.Email)
		}
	}
	return emails
}

// emailSender is the notification surface the services touch. Email failures
// are logged and never fail the business operation.
type emailSender interface {
	IsConfigured() bool
	SendSignupInvite(to []string) error
	SendProjectOnboarding(to []string, organizationID, projectID, projectCode string) error
	SendProjectOffboarding(to []string, projectCode string) error
	SendIssueAssignment(to, issueName, projectCode string) error
}

// fileService fronts the dataroom object storage.
type fileService interface {
	DownloadURL(ctx context.Context, bucket, projectID, itemID, filename, versionID string) (string, error)
	UploadURLs(ctx context.Context, bucket, projectID, itemID string, filenames []string) ([]files.UploadGrant, error)
	DataroomContents(ctx context.Context, bucket, projectID, itemID string) ([]files.Object, error)
}

// presenceRegistry tracks online connections per project.
type presenceRegistry interface {
	Heartbeat(ctx context.Context, customerID, projectID string, record presence.Record) error
	Online(ctx context.Context, customerID, projectID string) ([]presence.Record, error)
	Disconnect(ctx context.Context, customerID, projectID, userID string) error
}

// Options carries the optional collaborators and table naming. Zero-value
// prefixes fall back to the historical table names.
type Options struct {
	ProjectsTablePrefix string
	ChatTablePrefix     string
	UsersTable          string

	Email    emailSender
	Files    fileService
	Presence presenceRegistry
}

type Service struct {
	store     store.Store
	workflows *workflow.Writer
	email     emailSender
	files     fileService
	presence  presenceRegistry

	projectsPrefix string
	chatPrefix     string
	usersTable     string

	today func() time.Time
}

func NewService(st store.Store, workflows *workflow.Writer, opts Options) *Service {
	if opts.ProjectsTablePrefix == "" {
		opts.ProjectsTablePrefix = "Projects"
	}
	if opts.ChatTablePrefix == "" {
		opts.ChatTablePrefix = "ChatRecords"
	}
	if opts.UsersTable == "" {
		opts.UsersTable = "users"
	}
	return &Service{
		store:          st,
		workflows:      workflows,
		email:          opts.Email,
		files:          opts.Files,
		presence:       opts.Presence,
		projectsPrefix: opts.ProjectsTablePrefix,
		chatPrefix:     opts.ChatTablePrefix,
		usersTable:     opts.UsersTable,
		today:          time.Now,
	}
}

func (s *Service) projectsTable(customerID string) string {
	return s.projectsPrefix + "-" + customerID
}

func (s *Service) chatTable(customerID string) string {
	return s.chatPrefix + "-" + customerID
}

func projectKey(customerID, projectID string) store.Key {
	return store.Key{"customerId": customerID, "projectId": projectID}
}

func (s *Service) todayString() string {
	return s.today().Format("2006-01-02")
}

// Ping probes the document store with a cheap read. An absent sentinel key
// still proves the store answered.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.Get(ctx, s.usersTable, store.Key{"email": "ping", "orgId": "ping"}, []string{"userId"})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// ensureProject confirms the aggregate exists before a nested mutation.
func (s *Service) ensureProject(ctx context.Context, customerID, projectID string) error {
	_, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{"projectId"})
	if err != nil {
		return storeError(err)
	}
	return nil
}

// projectCode reads the short display code of a project, used in emails and
// audit messages.
func (s *Service) projectCode(ctx context.Context, customerID, projectID string) (string, error) {
	doc, err := s.store.Get(ctx, s.projectsTable(customerID), projectKey(customerID, projectID), []string{"projectId", "code"})
	if err != nil {
		return "", storeError(err)
	}
	code, _ := doc["code"].(string)
	return code, nil
}

// audit appends a workflow record, never failing the caller: the mutation
// already landed, so a broken audit write is logged and swallowed.
func (s *Service) audit(ctx context.Context, token, customerID, action, typeID, projectID string, messages []string) {
	if _, err := s.workflows.Record(ctx, token, customerID, action, typeID, projectID, messages); err != nil {
		log.Printf("audit record failed for %s %s: %v", action, typeID, err)
	}
}

// notify runs one email send, logging failures without surfacing them.
func (s *Service) notify(what string, send func() error) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	if err := send(); err != nil {
		log.Printf("send %s email failed: %v", what, err)
	}
}

// batchItem is one entry of a bulk-update request: the entity's own ID, its
// resolved nested path, and the fields to set.
type batchItem struct {
	id     string
	path   string
	fields map[string]any
}

// batchUpdate runs the shared bulk-update loop: per item, read the previous
// entity snapshot, apply the partial update, diff for the audit trail, and
// classify. Items whose entity is absent are skipped and appear in neither
// list. One item's failure never stops the rest.
func (s *Service) batchUpdate(ctx context.Context, token, customerID, projectID string, items []batchItem, stampField string) (*batch.Outcome, error) {
	if err := s.ensureProject(ctx, customerID, projectID); err != nil {
		return nil, err
	}

	table := s.projectsTable(customerID)
	key := projectKey(customerID, projectID)
	outcome := &batch.Outcome{}

	for _, item := range items {
		previousDoc, err := s.store.Get(ctx, table, key, []string{item.path})
		if err != nil {
			outcome.Failed(item.id)
			continue
		}
		previous, ok := docpath.GetMap(previousDoc, item.path)
		if !ok {
			// Absent entity: not found, continue.
			outcome.Skip(item.id)
			continue
		}

		if item.fields == nil {
			item.fields = map[string]any{}
		}
		if stampField != "" {
			item.fields[stampField] = s.todayString()
		}
		set := make(map[string]any, len(item.fields))
		for field, value := range item.fields {
			set[docpath.Join(item.path, field)] = value
		}
		if err := s.store.Update(ctx, table, key, set, nil); err != nil {
			log.Printf("batch update %s failed: %v", item.id, err)
			outcome.Failed(item.id)
			continue
		}
		outcome.Succeed(item.id)

		messages := diff.Changes(previous, item.fields)
		s.audit(ctx, token, customerID, workflow.ActionUpdate, item.id, projectID, messages)
	}

	return outcome, nil
}

// mapValues lists a nested map's entries, the shape every overview endpoint
// returns.
func mapValues(value any) []map[string]any {
	nested, ok := value.(map[string]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(nested))
	for _, entry := range nested {
		if entryMap, ok := entry.(map[string]any); ok {
			out = append(out, entryMap)
		}
	}
	return out
}

func stringField(doc map[string]any, name string) string {
	value, _ := doc[name].(string)
	return value
}
