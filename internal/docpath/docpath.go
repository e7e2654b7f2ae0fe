// Package docpath addresses values inside nested document maps using dotted
// paths, the same addressing the aggregate store understands.
package docpath

import (
	"sort"
	"strings"
)

// Join builds a dotted path from its segments. Empty segments are dropped so
// callers can pass optional ancestors unconditionally.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// Split breaks a dotted path into segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the value at path, walking intermediate maps. The second return
// is false when any segment is missing or a non-map value is traversed.
func Get(doc map[string]any, path string) (any, bool) {
	parts := Split(path)
	if len(parts) == 0 {
		return nil, false
	}
	current := doc
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// GetMap is Get for callers that expect a nested entity map at the path.
func GetMap(doc map[string]any, path string) (map[string]any, bool) {
	value, ok := Get(doc, path)
	if !ok {
		return nil, false
	}
	entity, ok := value.(map[string]any)
	return entity, ok
}

// Put sets the value at path, creating intermediate maps as needed. A
// non-map value sitting on an intermediate segment is overwritten, matching
// the merge-update contract of the aggregate store.
func Put(doc map[string]any, path string, value any) {
	parts := Split(path)
	if len(parts) == 0 {
		return
	}
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Delete removes the value at path. Missing paths are a no-op.
func Delete(doc map[string]any, path string) {
	parts := Split(path)
	if len(parts) == 0 {
		return
	}
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

// Flatten collapses nested maps into a single level of dotted paths.
func Flatten(doc map[string]any) map[string]any {
	flat := map[string]any{}
	flatten("", doc, flat)
	return flat
}

func flatten(prefix string, doc map[string]any, out map[string]any) {
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(path, nested, out)
			continue
		}
		out[path] = value
	}
}

// Project copies only the requested paths out of doc, preserving the nesting
// the paths describe. Paths absent from doc are skipped; an empty result
// means none of the paths resolved.
func Project(doc map[string]any, paths []string) map[string]any {
	out := map[string]any{}
	for _, path := range paths {
		if value, ok := Get(doc, path); ok {
			Put(out, path, value)
		}
	}
	return out
}

// Keys returns the sorted keys of a nested collection map, mostly for
// deterministic iteration in logs and tests.
func Keys(collection map[string]any) []string {
	keys := make([]string, 0, len(collection))
	for key := range collection {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
