package usecases

import "github.com/sandeepseesa/promptea/internal/core/graph"

// PaletteItem is one draggable entry of the node palette
type PaletteItem struct {
	Type  graph.NodeType `json:"type"`
	Label string         `json:"label"`
}

// Palette returns the node kinds users can drop, in display order
func Palette() []PaletteItem {
	kinds := graph.Kinds()
	items := make([]PaletteItem, 0, len(kinds))
	for _, k := range kinds {
		items = append(items, PaletteItem{Type: k.Type(), Label: k.Label()})
	}
	return items
}
