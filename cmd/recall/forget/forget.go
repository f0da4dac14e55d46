// Package forgetcmder provides memory deletion, including full per-user
// erasure.
package forgetcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/cmd/recall/bootstrap"
	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/logger"
)

type forgetCommander struct {
	memoryID string
	userID   string
	all      bool

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const forgetLongDesc string = `Delete memories.

Pass a memory ID to delete a single memory, or --user with --all to erase
everything stored for a user. Erasure is permanent; there is no soft
delete or retention window.

Examples:
  recall forget 4f6b2c1a-8d3e-4b7f-9a21-0c5d8e7f6a42
  recall forget --user alice --all`

const forgetShortDesc string = "Delete memories"

func NewForgetCmd() *cobra.Command {
	cmder := &forgetCommander{}

	cmd := &cobra.Command{
		Use:   "forget [memory-id]",
		Short: forgetShortDesc,
		Long:  forgetLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.memoryID = args[0]
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User whose memories to erase (requires --all)")
	cmd.Flags().BoolVar(&cmder.all, "all", false, "Erase all of the user's memories")

	return cmd
}

func (c *forgetCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.memoryID == "" && !(c.all && c.userID != "") {
		return fmt.Errorf("provide a memory ID, or --user with --all")
	}
	if c.memoryID != "" && c.all {
		return fmt.Errorf("--all cannot be combined with a memory ID")
	}

	rt, err := bootstrap.Build(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	if c.memoryID != "" {
		if err := rt.Engine.Forget(ctx, c.memoryID); err != nil {
			return err
		}
		fmt.Printf("Forgot memory %s\n", c.memoryID)
		return nil
	}

	n, err := rt.Engine.ForgetUser(ctx, c.userID)
	if err != nil {
		return err
	}
	fmt.Printf("Forgot %d memories for user %s\n", n, c.userID)
	return nil
}
