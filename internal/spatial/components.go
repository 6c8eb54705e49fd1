package spatial

import (
	"log/slog"
	"sort"
)

// Components labels every node with its connected component. Nodes are
// scanned in ascending ID order, so label 0 belongs to the component holding
// the smallest ID and labels grow with each component's smallest ID.
// sizes[label] is the node count of that component.
func Components(g *Graph) (labels map[string]int, sizes []int) {
	labels = make(map[string]int, g.Len())
	order := g.Nodes()
	sort.Strings(order)

	for _, start := range order {
		if _, seen := labels[start]; seen {
			continue
		}
		label := len(sizes)
		labels[start] = label
		queue := []string{start}
		for qi := 0; qi < len(queue); qi++ {
			for _, n := range g.Neighbors(queue[qi]) {
				if _, seen := labels[n]; !seen {
					labels[n] = label
					queue = append(queue, n)
				}
			}
		}
		sizes = append(sizes, len(queue))
	}
	return labels, sizes
}

// LargestComponent returns the IDs of the largest connected component in
// graph node order. When several components share the maximum size, the one
// containing the smallest ID wins.
func LargestComponent(g *Graph) ([]string, error) {
	ids, _, err := largestComponent(g)
	return ids, err
}

// largestComponent is LargestComponent plus the total component count.
func largestComponent(g *Graph) (ids []string, components int, err error) {
	if g == nil || g.Len() == 0 {
		return nil, 0, &EmptyInputError{Stage: "graph"}
	}

	labels, sizes := Components(g)
	best := 0
	for label, size := range sizes {
		if size > sizes[best] {
			best = label
		}
	}

	out := make([]string, 0, sizes[best])
	for _, id := range g.nodes {
		if labels[id] == best {
			out = append(out, id)
		}
	}
	return out, len(sizes), nil
}

// Reduce keeps only the records of the largest connected component and
// returns them with the induced subgraph. Record order is preserved.
func Reduce(records []Record, g *Graph) ([]Record, *Graph, error) {
	if len(records) == 0 {
		return nil, nil, &EmptyInputError{Stage: "input"}
	}
	keep, components, err := largestComponent(g)
	if err != nil {
		return nil, nil, err
	}

	want := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		want[id] = struct{}{}
	}
	kept := make([]Record, 0, len(keep))
	for _, rec := range records {
		if _, ok := want[rec.ID]; ok {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		return nil, nil, &EmptyInputError{Stage: "component", Records: len(records)}
	}

	slog.Info("reduced to largest connected component",
		"regions", len(kept),
		"discarded", len(records)-len(kept),
		"components", components,
	)
	return kept, g.Subgraph(keep), nil
}
