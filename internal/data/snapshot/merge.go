package snapshot

import "planboard/internal/engine/graph"

type MergeStats struct {
	NodesAdded   int
	NodesSkipped int
	EdgesAdded   int
	EdgesSkipped int
}

// Merge appends the proposal's nodes and edges to base, skipping nodes whose
// id already exists and edges whose id or source/target/kind triple already
// exists. base is not modified.
func Merge(base, proposal graph.Snapshot) (graph.Snapshot, MergeStats) {
	out := base.Clone()
	var stats MergeStats

	nodeIDs := make(map[string]bool, len(out.Nodes)+len(proposal.Nodes))
	for _, n := range out.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, n := range proposal.Nodes {
		if nodeIDs[n.ID] {
			stats.NodesSkipped++
			continue
		}
		nodeIDs[n.ID] = true
		out.Nodes = append(out.Nodes, n.Clone())
		stats.NodesAdded++
	}

	edgeIDs := make(map[string]bool, len(out.Edges)+len(proposal.Edges))
	edgeKeys := make(map[graph.EdgeKey]bool, len(out.Edges)+len(proposal.Edges))
	for _, e := range out.Edges {
		edgeIDs[e.ID] = true
		edgeKeys[e.Key()] = true
	}
	for _, e := range proposal.Edges {
		if edgeIDs[e.ID] || edgeKeys[e.Key()] {
			stats.EdgesSkipped++
			continue
		}
		edgeIDs[e.ID] = true
		edgeKeys[e.Key()] = true
		out.Edges = append(out.Edges, e)
		stats.EdgesAdded++
	}
	return out, stats
}
