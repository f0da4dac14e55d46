// Package searchcmder provides semantic search over stored memories.
package searchcmder

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recallhq/recall/cmd/recall/bootstrap"
	"github.com/recallhq/recall/pkg/config"
	"github.com/recallhq/recall/pkg/logger"
	"github.com/recallhq/recall/pkg/memory"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	typeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	contentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query     string
	userID    string
	topK      int
	threshold float64
	category  string
	quiet     bool

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const searchLongDesc string = `Search stored memories by meaning.

The query is embedded and matched against the user's memories. Results are
ranked by a blend of semantic similarity, importance, and recency, and
anything below the relevance threshold is dropped.

Use --quiet to output only memory IDs, one per line, for piping into
recall forget.

Examples:
  recall search "what editor do they use"
  recall search "crash on export" --user alice --category bug_report
  recall search "preferences" --top 10 --threshold 0.5
  recall forget $(recall search "old address" --quiet --top 1)`

const searchShortDesc string = "Search stored memories"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = bootstrap.LoadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "default", "User whose memories to search")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of results to return")
	cmd.Flags().Float64VarP(&cmder.threshold, "threshold", "t", 0, "Minimum relevance (0-1)")
	cmd.Flags().StringVarP(&cmder.category, "category", "c", "", "Restrict to one category")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only memory IDs, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	rt, err := bootstrap.Build(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	results, err := rt.Engine.Retrieve(context.Background(), memory.RetrieveQuery{
		UserID:    c.userID,
		Query:     c.query,
		Limit:     c.topK,
		Threshold: c.threshold,
		Category:  memory.Category(c.category),
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println("No memories found.")
		}
		return nil
	}

	if c.quiet {
		for _, mem := range results {
			fmt.Println(mem.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Memories matching:"),
		typeStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	now := time.Now()
	for i, mem := range results {
		fmt.Printf("  %s  %s  %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			scoreStyle.Render(fmt.Sprintf("relevance: %.4f", mem.Relevance)),
			typeStyle.Render(string(mem.Type)),
		)
		fmt.Printf("  %s\n", contentStyle.Render(mem.Content))
		fmt.Printf("  %s\n\n", dimStyle.Render(fmt.Sprintf("%s | %s | %s",
			mem.ID,
			string(mem.Category),
			relativeAge(mem.Timestamp, now),
		)))
	}

	return nil
}

func relativeAge(ts, now time.Time) string {
	days := int(now.Sub(ts).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
