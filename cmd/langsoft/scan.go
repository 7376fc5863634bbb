package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/japaniel/langsoft/pkg/db"
	"github.com/japaniel/langsoft/pkg/ingest"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/source"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		language string
		top      int
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "scan FILE|URL",
		Short: "Record the words of a document with their current tiers",
		Long: `Scan a document and record every word it contains in the encounter
database, together with the word's tier at scan time and up to five example
sentences. Web pages are reduced to their article text with readability.

Scans are resumable: scanning the same document again continues after the
last recorded sentence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := args[0]

			var doc *source.Document
			var err error
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				doc, err = source.FetchURL(ctx, nil, target)
			} else {
				doc, err = source.ReadFile(target)
			}
			if err != nil {
				return err
			}

			eng, err := a.engine()
			if err != nil {
				return err
			}
			tk, err := a.tokenizer()
			if err != nil {
				return err
			}
			ref, err := a.reference()
			if err != nil {
				log.WarnErr(log.CatCLI, "Reference dictionary unavailable", err, "path", a.cfg.Reference.Path)
			}

			conn, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			docID, err := db.CreateOrGetDocument(conn, doc.SourceType, doc.Title, doc.Author, doc.URL, doc.Path)
			if err != nil {
				return fmt.Errorf("saving document: %w", err)
			}

			out := cmd.OutOrStdout()
			sentences := source.SplitSentences(doc.Text)
			fmt.Fprintf(out, "%s: %d sentences\n", doc.Title, len(sentences))

			ig := ingest.NewIngester(conn, eng)
			ig.Tokenizer = tk
			ig.Reference = ref
			ig.Language = language
			if workers > 0 {
				ig.Workers = workers
			}
			occurrences, err := ig.Ingest(ctx, docID, sentences)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			if ref != nil {
				if _, err := ref.FillSuggestions(conn); err != nil {
					log.WarnErr(log.CatCLI, "Filling suggestions failed", err)
				}
			}

			counts, err := db.TierCounts(conn, docID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "recorded %d occurrences\n", occurrences)
			fmt.Fprintf(out, "known %d, semiknown %d, unknown %d, unclassified %d\n",
				counts["known"], counts["semiknown"], counts["unknown"], counts[""])

			encounters, err := db.GetEncountersByDocument(conn, docID)
			if err != nil {
				return err
			}
			unclassified := slices.DeleteFunc(encounters, func(e db.Encounter) bool { return e.Tier != "" })
			if len(unclassified) > top {
				unclassified = unclassified[:top]
			}
			for _, e := range unclassified {
				line := fmt.Sprintf("  %s\t%d", e.Term.Term, e.OccurrenceCount)
				if e.Pronunciation != "" {
					line += "\t" + e.Pronunciation
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "language code stored with every term")
	cmd.Flags().IntVar(&top, "top", 20, "number of unclassified words to list")
	cmd.Flags().IntVar(&workers, "workers", 0, "tokenizer workers (default 4)")
	return cmd
}
