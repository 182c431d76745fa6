// Package chatbot implements the conversational core of StorePulse: the
// label registry, the question classifier, the orchestration graph that
// dispatches one turn to exactly one backend, and the per-conversation
// runner the caller interacts with.
package chatbot

import "strings"

// Table is an ordered tabular result. Column order is significant and must
// be preserved end to end.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ChatState is the conversation state threaded through one turn of the
// orchestration graph.
//
// A completed turn carries exactly one of Response or Table — the respond
// node enforces the invariant before the state is handed back.
type ChatState struct {
	// Question is the current user utterance.
	Question string `json:"question"`

	// History holds the questions of prior completed turns, oldest first.
	// It is unbounded here; only the classifier context is bounded.
	History []string `json:"history"`

	// Route is assigned once per turn by the classifier and never
	// reassigned downstream.
	Route Label `json:"route"`

	// Response is the narrative answer, including failure narratives.
	Response string `json:"response,omitempty"`

	// Table is the tabular answer.
	Table *Table `json:"response_table,omitempty"`

	// Description annotates how a tabular result was derived.
	Description string `json:"description,omitempty"`
}

// contextTurns bounds how much history the classifier sees.
const contextTurns = 3

// RecentContext condenses the most recent history entries into the
// classifier context string. Empty when the conversation just started.
func (s *ChatState) RecentContext() string {
	if len(s.History) == 0 {
		return ""
	}
	start := len(s.History) - contextTurns
	if start < 0 {
		start = 0
	}
	return strings.Join(s.History[start:], "\n")
}
