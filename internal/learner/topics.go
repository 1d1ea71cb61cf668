package learner

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Topics maps a parent topic to the set of subtopics the learner has
// discussed. Values are kept sorted and de-duplicated.
type Topics map[string][]string

// synonyms maps common abbreviations and variants to their descriptive
// canonical key. Targets must not themselves appear as synonyms.
var synonyms = map[string]string{
	"bst":               "binary_search_trees",
	"bsts":              "binary_search_trees",
	"binary_search_bst": "binary_search_trees",
	"dp":                "dynamic_programming",
	"ll":                "linked_lists",
	"linkedlist":        "linked_lists",
	"linkedlists":       "linked_lists",
	"bfs":               "breadth_first_search",
	"dfs":               "depth_first_search",
	"hashmap":           "hash_tables",
	"hashmaps":          "hash_tables",
	"hash_map":          "hash_tables",
	"hash_maps":         "hash_tables",
	"hashtable":         "hash_tables",
	"hashtables":        "hash_tables",
	"pq":                "priority_queues",
	"big_o":             "asymptotic_complexity",
	"big_o_notation":    "asymptotic_complexity",
	"mst":               "minimum_spanning_trees",
	"sorting":           "sorting_algorithms",
	"searching":         "searching_algorithms",
	"graph":             "graphs",
	"tree":              "trees",
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// SnakeCase lowercases s and joins its alphanumeric runs with underscores.
func SnakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// canonical returns the snake_case, synonym-resolved name for a concept.
func canonical(s string) string {
	k := SnakeCase(s)
	if syn, ok := synonyms[k]; ok {
		return syn
	}
	return k
}

// stem reduces the last word of a snake_case name to a singular form so
// that singular and plural variants group together.
func stem(name string) string {
	i := strings.LastIndexByte(name, '_')
	head, last := name[:i+1], name[i+1:]
	switch {
	case strings.HasSuffix(last, "ies") && len(last) > 4:
		last = strings.TrimSuffix(last, "ies") + "y"
	case strings.HasSuffix(last, "sses"),
		strings.HasSuffix(last, "xes"),
		strings.HasSuffix(last, "ches"),
		strings.HasSuffix(last, "shes"):
		last = strings.TrimSuffix(last, "es")
	case strings.HasSuffix(last, "ss"),
		strings.HasSuffix(last, "is"),
		strings.HasSuffix(last, "us"):
		// Not a plural.
	case strings.HasSuffix(last, "s") && len(last) > 3:
		last = strings.TrimSuffix(last, "s")
	}
	return head + last
}

// NormalizeTopics canonicalizes a topic map:
//   - keys and values are snake_case with synonyms resolved;
//   - singular and plural variants merge, preferring the plural;
//   - a concept that is a parent anywhere is never also a child;
//   - a child claimed by several parents stays under the first in key order;
//   - values are sorted and de-duplicated.
//
// NormalizeTopics is idempotent.
func NormalizeTopics(t Topics) Topics {
	// Pick one display name per stem, preferring a plural variant.
	names := map[string]string{}
	see := func(raw string) {
		c := canonical(raw)
		if c == "" {
			return
		}
		st := stem(c)
		cur, ok := names[st]
		switch {
		case !ok:
			names[st] = c
		case cur == st && c != st:
			names[st] = c
		case cur != st && c != st && c < cur:
			names[st] = c
		}
	}
	for k, vs := range t {
		see(k)
		for _, v := range vs {
			see(v)
		}
	}
	name := func(raw string) string {
		c := canonical(raw)
		if c == "" {
			return ""
		}
		return names[stem(c)]
	}

	merged := map[string]map[string]bool{}
	for k, vs := range t {
		pk := name(k)
		if pk == "" {
			continue
		}
		set := merged[pk]
		if set == nil {
			set = map[string]bool{}
			merged[pk] = set
		}
		for _, v := range vs {
			if cv := name(v); cv != "" && cv != pk {
				set[cv] = true
			}
		}
	}

	out := Topics{}
	claimed := map[string]bool{}
	for _, pk := range slices.Sorted(maps.Keys(merged)) {
		var children []string
		for _, cv := range slices.Sorted(maps.Keys(merged[pk])) {
			if _, isParent := merged[cv]; isParent || claimed[cv] {
				continue
			}
			claimed[cv] = true
			children = append(children, cv)
		}
		if children == nil {
			children = []string{}
		}
		out[pk] = children
	}
	return out
}

// MergeTopics unions b into a and normalizes the result.
func MergeTopics(a, b Topics) Topics {
	u := Topics{}
	for _, src := range []Topics{a, b} {
		for k, vs := range src {
			u[k] = append(u[k], vs...)
		}
	}
	return NormalizeTopics(u)
}

// Equal reports whether two topic maps hold the same keys and values.
func (t Topics) Equal(o Topics) bool {
	return maps.EqualFunc(t, o, slices.Equal[[]string])
}

// Keys returns the parent topics in sorted order.
func (t Topics) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}
