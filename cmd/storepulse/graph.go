package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storepulse/chatbot/chatbot"
	"github.com/storepulse/chatbot/genie"
	"github.com/storepulse/chatbot/log"
	"github.com/storepulse/chatbot/session"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the routing graph as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := chatbot.DefaultRegistry()

		// Rendering only needs the topology, so the backends are stubs.
		structured := make(map[chatbot.Label]chatbot.StructuredBackend)
		for _, spec := range registry.Specs() {
			if spec.Kind == chatbot.BackendStructured {
				structured[spec.Label] = stubStructured{}
			}
		}

		diagram, err := chatbot.Mermaid(chatbot.GraphConfig{
			Registry:   registry,
			Classifier: chatbot.NewClassifier(nil, registry),
			Structured: structured,
			Retrieval:  stubRetrieval{},
			Sessions:   session.NewMemoryStore(),
			Logger:     &log.NoOpLogger{},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), diagram)
		return nil
	},
}

type stubStructured struct{}

func (stubStructured) Ask(context.Context, string, *genie.Token) (genie.Outcome, *genie.Token) {
	return genie.Outcome{}, nil
}

type stubRetrieval struct{}

func (stubRetrieval) Ask(context.Context, string) (string, []string, error) {
	return "", nil, nil
}
