// Package workflow records the audit trail: every create, update, add,
// remove, or delete against a project entity leaves a workflow entry keyed by
// the entity it touched.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"thea/api/internal/auth"
	"thea/api/internal/store"
	"thea/api/internal/util"
)

// Action labels the kind of change an entry records.
const (
	ActionCreate = "Create"
	ActionUpdate = "Update"
	ActionAdd    = "Add"
	ActionRemove = "Remove"
	ActionDelete = "Delete"
)

// Entry is one audit record. TypeID is the ID of the entity the change
// touched (issue, milestone, scope, ...), which is also the query index.
type Entry struct {
	ItemID    string   `json:"itemId"`
	Meta      []string `json:"meta"`
	Action    string   `json:"action"`
	TypeID    string   `json:"typeId"`
	ProjectID string   `json:"projectId"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	Timestamp string   `json:"timestamp"`
}

// Writer builds and persists audit entries. The zero value is not usable;
// construct with NewWriter.
type Writer struct {
	store       store.Store
	tablePrefix string
	now         func() time.Time
}

func NewWriter(st store.Store, tablePrefix string) *Writer {
	return &Writer{store: st, tablePrefix: tablePrefix, now: time.Now}
}

func (w *Writer) table(customerID string) string {
	return w.tablePrefix + "-" + customerID
}

// Record writes one audit entry attributed to the bearer of token. An empty
// message list means nothing changed and nothing is written.
func (w *Writer) Record(ctx context.Context, token, customerID, action, typeID, projectID string, messages []string) (*Entry, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	claims, err := auth.DecodeClaims(token)
	if err != nil {
		return nil, fmt.Errorf("record workflow: %w", err)
	}

	entry := &Entry{
		ItemID:    util.NewID(),
		Meta:      messages,
		Action:    action,
		TypeID:    typeID,
		ProjectID: projectID,
		Email:     claims.Email,
		Name:      claims.Name,
		Username:  claims.Username,
		Timestamp: timestamp(w.now()),
	}

	doc := store.Document{
		"itemId":    entry.ItemID,
		"meta":      messages,
		"action":    entry.Action,
		"typeId":    entry.TypeID,
		"projectId": entry.ProjectID,
		"email":     entry.Email,
		"name":      entry.Name,
		"username":  entry.Username,
		"timestamp": entry.Timestamp,
	}
	key := store.Key{"itemId": entry.ItemID}
	if err := w.store.Put(ctx, w.table(customerID), key, doc); err != nil {
		return nil, fmt.Errorf("record workflow: %w", err)
	}
	return entry, nil
}

// List returns the entries for one entity, oldest first, optionally filtered
// to a set of actions.
func (w *Writer) List(ctx context.Context, customerID, typeID string, actions []string) ([]Entry, error) {
	docs, err := w.store.Query(ctx, w.table(customerID), "typeId", typeID, nil)
	if err != nil {
		return nil, fmt.Errorf("list workflows for %s: %w", typeID, err)
	}

	wanted := map[string]bool{}
	for _, action := range actions {
		wanted[action] = true
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entry := entryFromDocument(doc)
		if len(wanted) > 0 && !wanted[entry.Action] {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries, nil
}

// timestamp renders epoch seconds with fractional precision, the historical
// wire format for this field.
func timestamp(t time.Time) string {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(seconds, 'f', 6, 64)
}

func entryFromDocument(doc store.Document) Entry {
	entry := Entry{
		ItemID:    stringAttr(doc, "itemId"),
		Action:    stringAttr(doc, "action"),
		TypeID:    stringAttr(doc, "typeId"),
		ProjectID: stringAttr(doc, "projectId"),
		Email:     stringAttr(doc, "email"),
		Name:      stringAttr(doc, "name"),
		Username:  stringAttr(doc, "username"),
		Timestamp: stringAttr(doc, "timestamp"),
	}
	switch meta := doc["meta"].(type) {
	case []string:
		entry.Meta = meta
	case []any:
		for _, message := range meta {
			if text, ok := message.(string); ok {
				entry.Meta = append(entry.Meta, text)
			}
		}
	}
	return entry
}

func stringAttr(doc store.Document, name string) string {
	value, _ := doc[name].(string)
	return value
}
