package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/langsoft/pkg/dictionary"
)

func (a *app) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify TERM...",
		Short: "Print the tier of each term in your dictionary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, term := range args {
				tier, ok := eng.Classify(term)
				if !ok {
					fmt.Fprintf(out, "%s\t-\n", term)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", term, tier)
			}
			return nil
		},
	}
}

func (a *app) defineCmd() *cobra.Command {
	var (
		tierName string
		file     string
		sentence string
	)
	cmd := &cobra.Command{
		Use:   "define TERM [MEANING]",
		Short: "Add a meaning to a term",
		Long: `Add a meaning to a term, or a phrase of several words, with a tier.

Without a meaning, the suggestions of the configured reference dictionary
are printed instead and nothing is recorded.

Examples:
  langsoft define kuchi mouth --tier known
  langsoft define "kick the bucket" "to die" --tier semiknown
  langsoft define 猫`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.printSuggestions(cmd, args[0])
			}
			tier, err := dictionary.ParseTier(tierName)
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			added, err := eng.AddDefinition(args[0], tier, args[1], dictionary.Context{
				Timestamp: time.Now(),
				File:      file,
				Sentence:  sentence,
			})
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "%q already has that meaning\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", args[0], args[1], tier)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tierName, "tier", "t", string(dictionary.TierUnknown), "tier: unknown, semiknown or known")
	cmd.Flags().StringVar(&file, "file", "", "file the term was found in")
	cmd.Flags().StringVar(&sentence, "sentence", "", "sentence the term was found in")
	return cmd
}

func (a *app) printSuggestions(cmd *cobra.Command, term string) error {
	ix, err := a.reference()
	if err != nil {
		return err
	}
	if ix == nil {
		return errors.New("a meaning is required when no reference dictionary is configured")
	}
	out := cmd.OutOrStdout()
	suggestions := ix.Suggest(term)
	if len(suggestions) == 0 {
		fmt.Fprintf(out, "no suggestions for %q\n", term)
		return nil
	}
	if reading := ix.Reading(term); reading != "" {
		fmt.Fprintf(out, "%s [%s]\n", term, reading)
	}
	for i, s := range suggestions {
		line := strings.Join(s.Senses, "; ")
		if len(s.POS) > 0 {
			line += " (" + strings.Join(s.POS, ", ") + ")"
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, line)
	}
	return nil
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TERM MEANING",
		Short: "Mark one meaning of a term as deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			found, err := eng.MarkDeleted(args[0], args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%q has no live meaning %q", args[0], args[1])
			}
			if tier, ok := eng.Classify(args[0]); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted; %s is now %s\n", args[0], tier)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted; %s has no meanings left\n", args[0])
			return nil
		},
	}
}

func (a *app) tierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tier TERM TIER",
		Short: "Change the tier of a term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := dictionary.ParseTier(args[1])
			if err != nil {
				return err
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			if err := eng.RecordTierChange(args[0], tier); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], tier)
			return nil
		},
	}
}
