// Package graph provides the state-graph engine that drives one turn of the
// StorePulse chatbot.
//
// A StateGraph[S] is a directed, acyclic control-flow graph. Nodes transform
// a typed state value; static edges chain nodes; a conditional edge picks
// the successor at runtime from the state. Compile validates the wiring and
// returns a Runnable whose Invoke executes exactly one path from the entry
// point to END, sequentially, with no graph-level retries.
package graph
