package graph

import "errors"

// END is a special constant used to represent the end node in the graph.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrAmbiguousEdge is returned when a node has more than one outgoing edge.
	// The engine executes a single active node per step; fan-out is not supported.
	ErrAmbiguousEdge = errors.New("multiple outgoing edges found for node")

	// ErrEmptyCondition is returned when a conditional edge resolves to an empty node name.
	ErrEmptyCondition = errors.New("conditional edge returned empty next node")
)

// Edge represents an edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}
