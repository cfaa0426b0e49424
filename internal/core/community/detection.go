// Package community groups related records into cases. Two records are
// linked when they share a non-empty identifier or sender.
package community

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/agenthands/intake/internal/core/model"
)

// Link is an undirected edge between two record ids.
type Link struct {
	A, B string
}

type Detector interface {
	// Detect returns groups of two or more ids, each sorted, ordered by
	// their first id.
	Detect(ids []string, links []Link) [][]string
}

// NewDetector returns the detector registered under name.
func NewDetector(name string) (Detector, error) {
	switch name {
	case "", "lpa":
		return NewLabelPropagationDetector(), nil
	case "components":
		return NewComponentDetector(), nil
	}
	return nil, eris.Errorf("unknown case detection method %q", name)
}

// Links connects every pair of entries that share an identifier or a
// sender. Empty keys link nothing.
func Links(entries []model.DuplicateIndexEntry) []Link {
	groups := make(map[string][]string)
	var keys []string
	add := func(key, id string) {
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], id)
	}
	for _, e := range entries {
		if e.Identifier != "" {
			add("id:"+e.Identifier, e.RecordID)
		}
		if e.Sender != "" {
			add("from:"+e.Sender, e.RecordID)
		}
	}

	var links []Link
	for _, k := range keys {
		members := groups[k]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				links = append(links, Link{A: members[i], B: members[j]})
			}
		}
	}
	return links
}

// Cases maps every record in a group of two or more to its case id, the
// smallest record id in the group.
func Cases(entries []model.DuplicateIndexEntry, d Detector) map[string]string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.RecordID
	}

	out := make(map[string]string)
	for _, group := range d.Detect(ids, Links(entries)) {
		for _, id := range group {
			out[id] = group[0]
		}
	}
	return out
}

// ComponentDetector returns connected components.
type ComponentDetector struct{}

func NewComponentDetector() *ComponentDetector {
	return &ComponentDetector{}
}

func (d *ComponentDetector) Detect(ids []string, links []Link) [][]string {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	adj := make(map[string][]string)
	for _, l := range links {
		if !known[l.A] || !known[l.B] {
			continue
		}
		adj[l.A] = append(adj[l.A], l.B)
		adj[l.B] = append(adj[l.B], l.A)
	}

	visited := make(map[string]bool)
	var groups [][]string
	for _, id := range ids {
		if visited[id] {
			continue
		}
		var component []string
		stack := []string{id}
		visited[id] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, u)
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		if len(component) >= 2 {
			groups = append(groups, component)
		}
	}
	return normalize(groups)
}

func normalize(groups [][]string) [][]string {
	for _, g := range groups {
		sort.Strings(g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
