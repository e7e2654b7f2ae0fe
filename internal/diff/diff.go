// Package diff generates the human-readable change descriptions that feed
// the workflow audit trail.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
)

// identifierFields are structural keys excluded from every comparison. They
// address entities inside the aggregate and are never business data.
var identifierFields = map[string]struct{}{
	"projectId":    {},
	"customerId":   {},
	"scopeId":      {},
	"issueId":      {},
	"milestoneId":  {},
	"reportId":     {},
	"discussionId": {},
	"docReqId":     {},
}

// Changes compares the fields present in both maps and describes each changed
// one. Fields only on one side are ignored, identifier fields are skipped,
// and the result is deduplicated and sorted. An empty result means nothing
// meaningfully changed and no audit record should be written.
func Changes(previous, proposed map[string]any) []string {
	seen := map[string]struct{}{}
	for key, old := range previous {
		next, shared := proposed[key]
		if !shared {
			continue
		}
		if _, structural := identifierFields[key]; structural {
			continue
		}
		if reflect.DeepEqual(old, next) {
			continue
		}

		label := Label(key)
		oldText, oldIsText := old.(string)
		nextText, nextIsText := next.(string)
		if oldIsText && nextIsText {
			seen[fmt.Sprintf("Updated '%s' from '%s' to '%s'", label, oldText, nextText)] = struct{}{}
		} else {
			seen[fmt.Sprintf("Updated '%s'", label)] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	messages := make([]string, 0, len(seen))
	for message := range seen {
		messages = append(messages, message)
	}
	sort.Strings(messages)
	return messages
}

// Label converts a compact field name into its spaced lower-case form, e.g.
// "dueDate" -> "due date". A token boundary is a lowercase-to-uppercase
// transition.
func Label(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
