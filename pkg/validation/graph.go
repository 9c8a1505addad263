package validation

import (
    "fmt"

    "github.com/sandeepseesa/promptea/internal/core/graph"
)

// CanvasValidationOptions controls optional validation checks.
type CanvasValidationOptions struct {
    // CheckCycles enables detection of directed cycles. Edge-based
    // resolution walks upstream and needs an acyclic canvas.
    CheckCycles bool
    // CheckNodeData runs each node kind's data validation.
    CheckNodeData bool
}

// ValidateCanvas performs structural validation on a canvas loaded from an
// external source (a snapshot or a client payload).
func ValidateCanvas(c *graph.Canvas, opts ...CanvasValidationOptions) error {
    if c == nil {
        return fmt.Errorf("canvas is nil")
    }
    if err := c.Validate(); err != nil {
        return err
    }

    var cfg CanvasValidationOptions
    if len(opts) > 0 {
        cfg = opts[0]
    }

    if cfg.CheckNodeData {
        for _, n := range c.Nodes {
            kind, _ := graph.LookupKind(n.Type)
            if err := kind.Validate(n.Data); err != nil {
                return fmt.Errorf("node %s: %w", n.ID, err)
            }
        }
    }

    type edgeKey struct{ s, t string }
    seen := make(map[edgeKey]struct{}, len(c.Edges))
    for _, e := range c.Edges {
        k := edgeKey{e.Source, e.Target}
        if _, dup := seen[k]; dup {
            return graph.ErrDuplicateEdge
        }
        seen[k] = struct{}{}
    }

    if cfg.CheckCycles && hasCycle(c) {
        return graph.ErrCyclicGraph
    }
    return nil
}

// hasCycle detects any cycle in a directed graph using DFS with coloring.
func hasCycle(c *graph.Canvas) bool {
    const (
        white = 0 // unvisited
        gray  = 1 // visiting
        black = 2 // visited
    )
    color := make(map[string]int, len(c.Nodes))
    adj := make(map[string][]string, len(c.Nodes))
    for _, e := range c.Edges {
        adj[e.Source] = append(adj[e.Source], e.Target)
    }
    var dfs func(string) bool
    dfs = func(u string) bool {
        color[u] = gray
        for _, v := range adj[u] {
            if color[v] == gray {
                return true // back-edge
            }
            if color[v] == white && dfs(v) {
                return true
            }
        }
        color[u] = black
        return false
    }
    for _, n := range c.Nodes {
        if color[n.ID] == white && dfs(n.ID) {
            return true
        }
    }
    return false
}
