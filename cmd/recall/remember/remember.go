// Package remembercmder provides direct fact storage.
package remembercmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/cmd/recall/bootstrap"
	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/logger"
	"github.com/recallhq/recall/pkg/memory"
)

type rememberCommander struct {
	content    string
	userID     string
	memType    string
	category   string
	importance float64

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const rememberLongDesc string = `Store a fact directly, bypassing extraction.

The fact still goes through deduplication and conflict resolution: storing
a near-duplicate returns the existing memory's ID, and storing a fact that
contradicts an older one (a new name, email, employer) supersedes it.

Examples:
  recall remember "Prefers dark mode" --user alice --type preference
  recall remember "My name is Alice Chen" --user alice
  recall remember "Export crashes on large files" --user alice --category bug_report --importance 0.9`

const rememberShortDesc string = "Store a fact directly"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.content = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "default", "User to remember this for")
	cmd.Flags().StringVarP(&cmder.memType, "type", "t", string(memory.TypeExtractedFact), "Memory type (extracted_fact, preference, sentiment, event)")
	cmd.Flags().StringVarP(&cmder.category, "category", "c", string(memory.DefaultCategory), "Memory category")
	cmd.Flags().Float64VarP(&cmder.importance, "importance", "i", 0.7, "Importance (0-1)")

	return cmd
}

func (c *rememberCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	rt, err := bootstrap.Build(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.Engine.Remember(context.Background(), c.userID, memory.ExtractedFact{
		Content:    c.content,
		Importance: c.importance,
		Type:       memory.ParseType(c.memType, memory.TypeExtractedFact),
		Category:   memory.ParseCategory(c.category),
	})
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}
