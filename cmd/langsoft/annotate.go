package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/japaniel/langsoft/pkg/source"
	"github.com/japaniel/langsoft/pkg/style"
	"github.com/japaniel/langsoft/pkg/update"
)

func (a *app) annotateCmd() *cobra.Command {
	var (
		showRanges bool
		selection  string
	)
	cmd := &cobra.Command{
		Use:   "annotate FILE",
		Short: "Print a text or HTML file highlighted by familiarity",
		Long: `Print a file with every word and phrase colored by its tier.

HTML files are reduced to their article text first. With --ranges the
decorations are listed as byte offsets instead, one per line:

  FROM  TO  CLASS  TERM  [COLLABORATOR]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := source.ReadFile(args[0])
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			eng.Open(update.NewText(doc.Text), nil)
			if selection != "" {
				from, to, err := parseSpan(selection)
				if err != nil {
					return err
				}
				eng.SetSelection(from, to)
			}
			ranges := eng.Decorations()

			out := cmd.OutOrStdout()
			if showRanges {
				for _, r := range ranges {
					line := fmt.Sprintf("%d\t%d\t%s\t%s", r.From, r.To, r.Class, r.Term)
					if r.Source != "" {
						line += "\t" + r.Source
					}
					fmt.Fprintln(out, line)
				}
				return nil
			}
			term := style.NewTerminal(lipgloss.NewRenderer(out), a.cfg.Highlight, a.cfg.Selection.Class)
			fmt.Fprintln(out, term.Render(doc.Text, ranges))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRanges, "ranges", false, "list decorations instead of rendering the text")
	cmd.Flags().StringVar(&selection, "select", "", "highlight a selection, given as FROM:TO byte offsets")
	return cmd
}

func parseSpan(s string) (int, int, error) {
	fromStr, toStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("selection %q must be FROM:TO", s)
	}
	from, err := strconv.Atoi(fromStr)
	if err != nil {
		return 0, 0, fmt.Errorf("selection start: %w", err)
	}
	to, err := strconv.Atoi(toStr)
	if err != nil {
		return 0, 0, fmt.Errorf("selection end: %w", err)
	}
	return from, to, nil
}
