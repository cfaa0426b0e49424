package community

import (
	"sort"
)

// LabelPropagationDetector groups records with label propagation. Unlike
// ComponentDetector it can keep two tight groups apart when a single link
// bridges them.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

func (d *LabelPropagationDetector) Detect(ids []string, links []Link) [][]string {
	if len(ids) == 0 {
		return nil
	}

	// node -> neighbor -> weight; repeated links count as stronger ties
	adj := make(map[string]map[string]int, len(ids))
	for _, id := range ids {
		adj[id] = make(map[string]int)
	}
	for _, l := range links {
		if _, ok := adj[l.A]; !ok {
			continue
		}
		if _, ok := adj[l.B]; !ok {
			continue
		}
		adj[l.A][l.B]++
		adj[l.B][l.A]++
	}

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0

		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			best := 0
			for v, w := range neighbors {
				l := labels[v]
				counts[l] += w
				if counts[l] > best {
					best = counts[l]
				}
			}

			var candidates []string
			for l, c := range counts {
				if c == best {
					candidates = append(candidates, l)
				}
			}
			// lexicographically largest keeps runs reproducible
			sort.Strings(candidates)
			next := candidates[len(candidates)-1]

			if labels[u] != next {
				labels[u] = next
				changed++
			}
		}

		if changed == 0 {
			break
		}
	}

	clusters := make(map[string][]string)
	for _, id := range ids {
		clusters[labels[id]] = append(clusters[labels[id]], id)
	}

	var groups [][]string
	for _, c := range clusters {
		if len(c) >= 2 {
			groups = append(groups, c)
		}
	}
	return normalize(groups)
}
