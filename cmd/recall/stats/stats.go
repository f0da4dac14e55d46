// Package statscmder provides memory store statistics.
package statscmder

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/cmd/recall/bootstrap"
	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/logger"
	"github.com/recallhq/recall/pkg/memory"
)

var (
	keyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type statsCommander struct {
	userID string

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const statsLongDesc string = `Show memory store statistics.

Without flags, shows the total memory count. With --user, shows that
user's count plus a breakdown by memory type.

Examples:
  recall stats
  recall stats --user alice`

const statsShortDesc string = "Show memory statistics"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "Scope statistics to one user")

	return cmd
}

func (c *statsCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	rt, err := bootstrap.Build(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	total, err := rt.Engine.Count(ctx, c.userID)
	if err != nil {
		return err
	}

	fmt.Println()
	if c.userID == "" {
		fmt.Printf("  %s %d\n", keyStyle.Render("Total memories:"), total)
		fmt.Printf("  %s %s\n", keyStyle.Render("Vector store:"), c.cfg.VectorStore.Provider)
		fmt.Println()
		return nil
	}

	fmt.Printf("  %s %s\n", keyStyle.Render("User:"), c.userID)
	fmt.Printf("  %s %d\n", keyStyle.Render("Memories:"), total)

	byType := make(map[memory.Type]int)
	mems, err := rt.Engine.UserMemories(ctx, c.userID)
	if err != nil {
		return err
	}
	for _, mem := range mems {
		byType[mem.Type]++
	}

	for _, t := range []memory.Type{
		memory.TypeExtractedFact,
		memory.TypePreference,
		memory.TypeSentiment,
		memory.TypeEvent,
		memory.TypeConversation,
	} {
		if byType[t] == 0 {
			continue
		}
		fmt.Printf("    %s %d\n", dimStyle.Render(string(t)+":"), byType[t])
	}
	fmt.Println()

	return nil
}
