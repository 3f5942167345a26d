// Package community groups country-days whose coverage reads alike into
// themes, by label propagation over the similarity graph.
package community

import (
	"fmt"
	"sort"

	"github.com/agenthands/moodmap/internal/core/index"
)

// Edge is an undirected weighted link between two document IDs.
type Edge struct {
	Source string
	Target string
	Weight float64
}

// Community is a theme of at least MinSize documents. ID is the label the
// members converged on, which is one of the member IDs.
type Community struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

type LabelPropagationDetector struct {
	MaxIterations int
	MinSize       int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
		MinSize:       2,
	}
}

// Detect is deterministic: nodes are visited in ID order and ties go to the
// lexicographically largest label. Communities come back largest first, then
// by ID; members are sorted.
func (d *LabelPropagationDetector) Detect(ids []string, edges []Edge) []Community {
	if len(ids) == 0 {
		return nil
	}

	adj := make(map[string]map[string]float64, len(ids))
	for _, id := range ids {
		adj[id] = make(map[string]float64)
	}
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := adj[e.Source]; !ok {
			continue
		}
		if _, ok := adj[e.Target]; !ok {
			continue
		}
		adj[e.Source][e.Target] += e.Weight
		adj[e.Target][e.Source] += e.Weight
	}

	nodes := append([]string(nil), ids...)
	sort.Strings(nodes)
	labels := make(map[string]string, len(nodes))
	for _, id := range nodes {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range nodes {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			weights := make(map[string]float64)
			for v, w := range neighbors {
				weights[labels[v]] += w
			}
			best, bestWeight := "", 0.0
			for label, w := range weights {
				if w > bestWeight || (w == bestWeight && label > best) {
					best, bestWeight = label, w
				}
			}
			if best != "" && labels[u] != best {
				labels[u] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	groups := make(map[string][]string)
	for _, id := range nodes {
		groups[labels[id]] = append(groups[labels[id]], id)
	}
	var out []Community
	for label, members := range groups {
		if len(members) < max(d.MinSize, 1) {
			continue
		}
		out = append(out, Community{ID: label, Members: members})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Members) != len(out[j].Members) {
			return len(out[i].Members) > len(out[j].Members)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FromGeneration links every indexed document to its k nearest neighbours
// with similarity at least minSimilarity, then detects communities.
func (d *LabelPropagationDetector) FromGeneration(gen *index.Generation, k int, minSimilarity float64) ([]Community, error) {
	var ids []string
	var edges []Edge
	for _, doc := range gen.Documents() {
		ids = append(ids, doc.ID)
		results, err := gen.Neighbors(doc.ID, index.Query{K: k, ExcludeID: doc.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to find neighbours of %s: %w", doc.ID, err)
		}
		for _, r := range results {
			if r.Similarity < minSimilarity {
				continue
			}
			edges = append(edges, Edge{Source: doc.ID, Target: r.DocumentID, Weight: r.Similarity})
		}
	}
	return d.Detect(ids, edges), nil
}
