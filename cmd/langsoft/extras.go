package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/japaniel/langsoft/pkg/config"
	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/style"
)

func (a *app) styleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "style",
		Short: "Print the CSS stylesheet for the configured highlight colors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), style.Stylesheet(a.cfg.Highlight))
			return nil
		},
	}
}

func (a *app) fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch URL [NAME]",
		Short: "Download a collaborator's exported dictionary",
		Long: `Download a dictionary exported by another user into the dictionary
folder as NAME.json. Gzip-compressed files are accepted. NAME defaults to
the file name in the URL.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			eng, err := a.engine()
			if err != nil {
				return err
			}
			path, err := eng.Store().FetchCollaborator(cmd.Context(), nil, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload collaborator dictionaries whenever the folder changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			unsubscribe := eng.Store().Subscribe(func(c dictionary.Change) {
				if c.Op == dictionary.OpCollaboratorsReloaded {
					fmt.Fprintf(out, "collaborators: %s\n", strings.Join(eng.Store().Collaborators(), ", "))
				}
			})
			defer unsubscribe()

			ctx := cmd.Context()
			if err := eng.WatchCollaborators(ctx, a.cfg.Watch.Debounce); err != nil {
				return err
			}
			log.Info(log.CatCLI, "Watching dictionary folder", "dir", a.cfg.DictionaryDir)
			fmt.Fprintf(out, "watching %s\n", a.cfg.DictionaryDir)
			<-ctx.Done()
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a dotted key, e.g. highlight.known.color, in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgPath
			if path == "" {
				path = config.LocalConfigPath
			}
			if err := config.SetValue(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", args[0], args[1], path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.cfgPath)
		},
	})
	return cmd
}
