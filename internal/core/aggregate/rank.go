package aggregate

import (
	"sort"
	"strings"
)

// TopK ranks distinct non-blank items by occurrence count. Equal counts keep
// first-seen order, so the input order matters.
func TopK(items []string, k int) []string {
	if k <= 0 {
		return nil
	}

	type entry struct {
		value string
		count int
		first int
	}
	byValue := make(map[string]*entry)
	var entries []*entry
	for i, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		e, ok := byValue[it]
		if !ok {
			e = &entry{value: it, first: i}
			byValue[it] = e
			entries = append(entries, e)
		}
		e.count++
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	if len(entries) > k {
		entries = entries[:k]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

var noisyActors = map[string]bool{
	"facebook":  true,
	"twitter":   true,
	"instagram": true,
	"linkedin":  true,
	"whatsapp":  true,
	"youtube":   true,
}

// keepActor drops short tokens and social-network names that GDELT tags as persons.
func keepActor(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return len(n) >= 3 && !noisyActors[n]
}
