package docpath

import (
	"reflect"
	"testing"
)

func TestJoinDropsEmptySegments(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"scopes", "s1", "issues", "i1"}, "scopes.s1.issues.i1"},
		{[]string{"scopes", "", "s1"}, "scopes.s1"},
		{[]string{"dataroom"}, "dataroom"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Join(tc.parts...); got != tc.want {
			t.Errorf("Join(%v) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	doc := map[string]any{}
	path := Join("scopes", "s1", "issues", "i1")

	Put(doc, path, map[string]any{"status": "open"})

	value, ok := Get(doc, path)
	if !ok {
		t.Fatalf("Get(%q) missing after Put", path)
	}
	entity, ok := value.(map[string]any)
	if !ok || entity["status"] != "open" {
		t.Fatalf("Get(%q) = %#v, want issue map", path, value)
	}

	// Intermediate maps were created on demand.
	if _, ok := GetMap(doc, "scopes.s1"); !ok {
		t.Fatal("intermediate scope map not created")
	}
}

func TestGetMissing(t *testing.T) {
	doc := map[string]any{"scopes": map[string]any{"s1": map[string]any{}}}
	if _, ok := Get(doc, "scopes.s2.issues"); ok {
		t.Fatal("expected miss for absent scope")
	}
	if _, ok := Get(doc, "scopes.s1.issues.i9"); ok {
		t.Fatal("expected miss for absent issue")
	}
}

func TestGetThroughScalar(t *testing.T) {
	doc := map[string]any{"status": "active"}
	if _, ok := Get(doc, "status.nested"); ok {
		t.Fatal("expected miss when traversing a scalar")
	}
}

func TestDelete(t *testing.T) {
	doc := map[string]any{}
	Put(doc, "scopes.s1.issues.i1", map[string]any{"status": "open"})
	Put(doc, "scopes.s1.issues.i2", map[string]any{"status": "open"})

	Delete(doc, "scopes.s1.issues.i1")

	if _, ok := Get(doc, "scopes.s1.issues.i1"); ok {
		t.Fatal("i1 still present after Delete")
	}
	if _, ok := Get(doc, "scopes.s1.issues.i2"); !ok {
		t.Fatal("i2 removed by unrelated Delete")
	}

	// Deleting a missing path is a no-op.
	Delete(doc, "scopes.sX.issues.i1")
}

func TestFlatten(t *testing.T) {
	doc := map[string]any{
		"projectId": "p1",
		"scopes": map[string]any{
			"s1": map[string]any{"status": "pending"},
		},
	}
	got := Flatten(doc)
	want := map[string]any{
		"projectId":        "p1",
		"scopes.s1.status": "pending",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = %#v, want %#v", got, want)
	}
}

func TestProject(t *testing.T) {
	doc := map[string]any{
		"projectId": "p1",
		"code":      "ABC123",
		"scopes": map[string]any{
			"s1": map[string]any{"status": "pending", "scopeName": "diligence"},
		},
	}
	got := Project(doc, []string{"projectId", "scopes.s1.status", "scopes.sX"})
	want := map[string]any{
		"projectId": "p1",
		"scopes": map[string]any{
			"s1": map[string]any{"status": "pending"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Project = %#v, want %#v", got, want)
	}
}
