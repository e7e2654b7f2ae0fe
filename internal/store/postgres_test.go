package store

import (
	"strings"
	"testing"
)

func TestBuildMergeUpdateSetOnly(t *testing.T) {
	statement, args, err := buildMergeUpdate(map[string]any{
		"scopes.s1.issues.i1.criticality": "high",
		"lastUpdate":                      "owner",
	}, nil)
	if err != nil {
		t.Fatalf("buildMergeUpdate: %v", err)
	}

	want := `UPDATE documents SET doc = jsonb_set_deep(jsonb_set_deep(doc, $3::text[], $4::jsonb), $5::text[], $6::jsonb) WHERE table_name = $1 AND doc_key = $2`
	if statement != want {
		t.Errorf("statement =\n%s\nwant\n%s", statement, want)
	}
	// Paths are applied in sorted order, so lastUpdate binds first.
	wantArgs := []any{
		`{"lastUpdate"}`, `"owner"`,
		`{"scopes","s1","issues","i1","criticality"}`, `"high"`,
	}
	if len(args) != len(wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
	for i := range wantArgs {
		if args[i] != wantArgs[i] {
			t.Errorf("args[%d] = %v, want %v", i, args[i], wantArgs[i])
		}
	}
}

func TestBuildMergeUpdateRemove(t *testing.T) {
	statement, args, err := buildMergeUpdate(nil, []string{"scopes.s1.issues.i1"})
	if err != nil {
		t.Fatalf("buildMergeUpdate: %v", err)
	}
	if !strings.Contains(statement, "doc #- $3::text[]") {
		t.Errorf("statement missing removal operator: %s", statement)
	}
	if len(args) != 1 || args[0] != `{"scopes","s1","issues","i1"}` {
		t.Errorf("args = %v", args)
	}
}

func TestBuildMergeUpdateSetAndRemove(t *testing.T) {
	statement, args, err := buildMergeUpdate(
		map[string]any{"status": "closed"},
		[]string{"dataroom.d1"},
	)
	if err != nil {
		t.Fatalf("buildMergeUpdate: %v", err)
	}
	want := `UPDATE documents SET doc = (jsonb_set_deep(doc, $3::text[], $4::jsonb) #- $5::text[]) WHERE table_name = $1 AND doc_key = $2`
	if statement != want {
		t.Errorf("statement =\n%s\nwant\n%s", statement, want)
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildMergeUpdateStructuredValue(t *testing.T) {
	_, args, err := buildMergeUpdate(map[string]any{
		"teamMembers.u1": map[string]any{"role": "Manager", "email": "a@b.co"},
	}, nil)
	if err != nil {
		t.Fatalf("buildMergeUpdate: %v", err)
	}
	encoded, ok := args[1].(string)
	if !ok || !strings.Contains(encoded, `"role":"Manager"`) {
		t.Errorf("structured value not encoded as json: %v", args[1])
	}
}

func TestPGPathArray(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"status", `{"status"}`},
		{"scopes.s1.status", `{"scopes","s1","status"}`},
		{`a"b.c`, `{"a\"b","c"}`},
	}
	for _, tc := range cases {
		if got := pgPathArray(tc.path); got != tc.want {
			t.Errorf("pgPathArray(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestKeyCanonical(t *testing.T) {
	a := Key{"projectId": "p1", "customerId": "c1"}
	b := Key{"customerId": "c1", "projectId": "p1"}
	if a.canonical() != b.canonical() {
		t.Errorf("key canonical form depends on insertion order: %s vs %s", a.canonical(), b.canonical())
	}
	if a.canonical() != "customerId=c1|projectId=p1" {
		t.Errorf("canonical = %s", a.canonical())
	}
}
