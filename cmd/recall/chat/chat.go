// Package chatcmder provides the interactive memory-grounded chat command.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/cmd/recall/bootstrap"
	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/logger"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	failMark        = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("x")
)

type chatCommander struct {
	userID    string
	sessionID string
	debug     bool

	cfg    *config.Config
	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session with memory.

Each exchange retrieves the memories most relevant to your message, folds
them into the model's context, and records new facts extracted from the
conversation. Facts persist across sessions; say "my name is ..." in one
session and the assistant knows it in the next.

Inside the session:
  /stats    Show session and embedding cache statistics
  /exit     Quit (Ctrl+D also works)

Examples:
  recall chat
  recall chat --user alice
  recall chat --user alice --session support-4211`

const chatShortDesc string = "Interactive chat with memory"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
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

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "default", "User whose memories to use")
	cmd.Flags().StringVarP(&cmder.sessionID, "session", "s", "", "Session ID (defaults to a fresh one)")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
	}

	rt, err := bootstrap.Build(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	count, err := rt.Engine.Count(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("counting memories: %w", err)
	}

	fmt.Println()
	fmt.Printf("  %s %s %s\n",
		keyStyle.Render("User:"),
		c.userID,
		dimStyle.Render(fmt.Sprintf("(%d memories)", count)),
	)
	fmt.Printf("  %s %s\n\n", keyStyle.Render("Model:"), c.cfg.LLM.Model)
	fmt.Printf("  %s\n\n", dimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/stats" {
			c.printStats(ctx, rt)
			continue
		}

		reply, err := rt.Engine.Chat(ctx, c.userID, c.sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", failMark, err)
			continue
		}

		fmt.Printf("%s%s\n\n", assistantPrompt, reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

func (c *chatCommander) printStats(ctx context.Context, rt *bootstrap.Runtime) {
	session, err := rt.Engine.Session(c.sessionID, c.userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  %s %v\n", failMark, err)
		return
	}

	count, err := rt.Engine.Count(ctx, c.userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  %s %v\n", failMark, err)
		return
	}

	cacheStats := rt.Cache.Stats()

	fmt.Println()
	fmt.Printf("  %s %d\n", keyStyle.Render("Messages this session:"), session.MessageCount)
	fmt.Printf("  %s %d\n", keyStyle.Render("Stored memories:"), count)
	fmt.Printf("  %s %d hits / %d misses (%.0f%% hit rate, %d cached)\n",
		keyStyle.Render("Embedding cache:"),
		cacheStats.Hits,
		cacheStats.Misses,
		cacheStats.HitRate()*100,
		cacheStats.Size,
	)
	if len(session.RecentMemories) > 0 {
		fmt.Printf("  %s\n", keyStyle.Render("Recently recalled:"))
		for _, mem := range session.RecentMemories {
			fmt.Printf("    %s\n", dimStyle.Render(mem.Content))
		}
	}
	fmt.Println()
}
