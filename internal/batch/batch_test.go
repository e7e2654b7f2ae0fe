package batch

import (
	"net/http"
	"testing"
)

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name    string
		success []string
		fail    []string
		want    int
	}{
		{"empty batch", nil, nil, http.StatusNotModified},
		{"all succeed", []string{"a"}, nil, http.StatusOK},
		{"all fail", nil, []string{"a"}, http.StatusForbidden},
		{"partial", []string{"a"}, []string{"b"}, http.StatusMethodNotAllowed},
		{"many succeed", []string{"a", "b", "c"}, nil, http.StatusOK},
		{"many fail", nil, []string{"a", "b"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var o Outcome
			for _, id := range tc.success {
				o.Succeed(id)
			}
			for _, id := range tc.fail {
				o.Failed(id)
			}
			if got := o.Status(); got != tc.want {
				t.Errorf("Status() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSkippedCountsTowardNeitherList(t *testing.T) {
	var o Outcome
	o.Skip("missing-1")
	o.Skip("missing-2")

	if got := o.Status(); got != http.StatusNotModified {
		t.Errorf("Status() with only skips = %d, want 304", got)
	}
	if len(o.Success) != 0 || len(o.Fail) != 0 {
		t.Errorf("skips leaked into success=%v fail=%v", o.Success, o.Fail)
	}
	if got := len(o.Skipped()); got != 2 {
		t.Errorf("Skipped() length = %d, want 2", got)
	}
}

func TestSkipDoesNotChangeClassification(t *testing.T) {
	var o Outcome
	o.Succeed("m1")
	o.Succeed("m2")
	o.Skip("m3")

	if got := o.Status(); got != http.StatusOK {
		t.Errorf("Status() = %d, want 200 when skips accompany successes", got)
	}
}
