package graph

import (
	"fmt"
	"sort"
	"strings"
)

// DrawMermaid generates a Mermaid flowchart representation of the graph.
// Conditional routing targets are not statically known, so a conditional
// edge is rendered as a dashed decision node.
func (g *StateGraph[S]) DrawMermaid() string {
	var sb strings.Builder

	sb.WriteString("flowchart TD\n")

	if g.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString(fmt.Sprintf("    START --> %s\n", g.entryPoint))
	}

	nodeNames := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		nodeNames = append(nodeNames, name)
	}
	sort.Strings(nodeNames)

	for _, name := range nodeNames {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", name, name))
	}

	hasEnd := false
	for _, edge := range g.edges {
		if edge.To == END {
			hasEnd = true
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", edge.From, edge.To))
	}
	if hasEnd {
		sb.WriteString("    END([\"END\"])\n")
	}

	conditionFroms := make([]string, 0, len(g.conditionalEdges))
	for from := range g.conditionalEdges {
		conditionFroms = append(conditionFroms, from)
	}
	sort.Strings(conditionFroms)

	for _, from := range conditionFroms {
		sb.WriteString(fmt.Sprintf("    %s -.-> %s_condition{?}\n", from, from))
	}

	return sb.String()
}
