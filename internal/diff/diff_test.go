package diff

import (
	"reflect"
	"testing"
)

func TestChangesIdentical(t *testing.T) {
	doc := map[string]any{"status": "open", "dueDate": "2026-01-01"}
	if got := Changes(doc, doc); got != nil {
		t.Errorf("Changes(X, X) = %v, want empty", got)
	}
}

func TestChangesScalarText(t *testing.T) {
	previous := map[string]any{"criticality": "low", "dueDate": "2026-01-01"}
	proposed := map[string]any{"criticality": "high", "dueDate": "2026-01-01"}

	got := Changes(previous, proposed)
	want := []string{"Updated 'criticality' from 'low' to 'high'"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Changes = %v, want %v", got, want)
	}
}

func TestChangesStructuredValue(t *testing.T) {
	previous := map[string]any{"issueOwner": map[string]any{"email": "a@x.co"}}
	proposed := map[string]any{"issueOwner": map[string]any{"email": "b@x.co"}}

	got := Changes(previous, proposed)
	want := []string{"Updated 'issue owner'"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Changes = %v, want %v", got, want)
	}
}

func TestChangesIgnoresOneSidedFields(t *testing.T) {
	previous := map[string]any{"status": "open"}
	proposed := map[string]any{"status": "open", "resolutionPath": "escalate"}
	if got := Changes(previous, proposed); got != nil {
		t.Errorf("Changes = %v, want empty for non-shared fields", got)
	}
}

func TestChangesExcludesIdentifiers(t *testing.T) {
	previous := map[string]any{"issueId": "i1", "scopeId": "s1", "projectId": "p1"}
	proposed := map[string]any{"issueId": "i2", "scopeId": "s2", "projectId": "p2"}
	if got := Changes(previous, proposed); got != nil {
		t.Errorf("Changes = %v, want empty for identifier-only diffs", got)
	}
}

func TestChangesDeduplicates(t *testing.T) {
	// Two structured fields whose descriptions would collide after label
	// conversion yield the message once.
	previous := map[string]any{"issueOwner": map[string]any{"a": 1}, "issue Owner": []any{1}}
	proposed := map[string]any{"issueOwner": map[string]any{"a": 2}, "issue Owner": []any{2}}

	got := Changes(previous, proposed)
	want := []string{"Updated 'issue owner'"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Changes = %v, want %v", got, want)
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"dueDate":       "due date",
		"natureOfIssue": "nature of issue",
		"status":        "status",
		"lastUpdate":    "last update",
	}
	for field, want := range cases {
		if got := Label(field); got != want {
			t.Errorf("Label(%q) = %q, want %q", field, got, want)
		}
	}
}
