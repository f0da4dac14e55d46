// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/recallhq/recall/cmd/recall/chat"
	forgetcmder "github.com/recallhq/recall/cmd/recall/forget"
	remembercmder "github.com/recallhq/recall/cmd/recall/remember"
	searchcmder "github.com/recallhq/recall/cmd/recall/search"
	statscmder "github.com/recallhq/recall/cmd/recall/stats"
	versioncmder "github.com/recallhq/recall/cmd/version"
)

const recallLongDesc string = `Recall is long-term semantic memory for conversational agents.

It extracts durable facts from conversations, stores them as embeddings,
and retrieves the relevant ones to ground each new exchange.

Common commands:
  recall chat        Interactive chat with memory
  recall remember    Store a fact directly
  recall search      Semantic search over stored memories
  recall forget      Delete memories
  recall stats       Show memory statistics`

const recallShortDesc string = "Recall - Semantic memory for agents"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(forgetcmder.NewForgetCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
