package usecases

import (
	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// runInputs are the nodes a run reads from and writes to. Any may be nil.
type runInputs struct {
	query  *graph.Node
	model  *graph.Node
	kb     *graph.Node
	output *graph.Node
}

// InputResolver finds the nodes a run uses
// PRINCIPLES:
// - OCP: New resolution strategies without touching the runner
type InputResolver interface {
	Resolve(c *graph.Canvas) runInputs
}

// NewInputResolver returns the resolver for mode. Unknown modes resolve by type.
func NewInputResolver(mode dto.ResolveMode) InputResolver {
	if mode == dto.ResolveByEdges {
		return edgeResolver{}
	}
	return typeResolver{}
}

// typeResolver takes the first node of each type in canvas order. Edges
// are ignored.
type typeResolver struct{}

func (typeResolver) Resolve(c *graph.Canvas) runInputs {
	return runInputs{
		query:  c.FirstOfType(graph.NodeTypeQuery),
		model:  c.FirstOfType(graph.NodeTypeModelSelector),
		kb:     c.FirstOfType(graph.NodeTypeKnowledgeBase),
		output: c.FirstOfType(graph.NodeTypeOutput),
	}
}

// edgeResolver takes the first output node, then the nearest node of each
// input type wired upstream of it. Without an output node there is nothing
// to walk from, so it falls back to type resolution; the run then creates
// the output node.
type edgeResolver struct{}

func (edgeResolver) Resolve(c *graph.Canvas) runInputs {
	out := c.FirstOfType(graph.NodeTypeOutput)
	if out == nil {
		return typeResolver{}.Resolve(c)
	}
	in := runInputs{output: out}
	for _, n := range c.Upstream(out.ID) {
		switch n.Type {
		case graph.NodeTypeQuery:
			if in.query == nil {
				in.query = n
			}
		case graph.NodeTypeModelSelector:
			if in.model == nil {
				in.model = n
			}
		case graph.NodeTypeKnowledgeBase:
			if in.kb == nil {
				in.kb = n
			}
		}
	}
	return in
}
