package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/japaniel/langsoft/pkg/config"
	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/engine"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/phrase"
	"github.com/japaniel/langsoft/pkg/reference"
	"github.com/japaniel/langsoft/pkg/tokenize"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	cfgPath string

	closeLog func()
	tk       *tokenize.Tokenizer
	eng      *engine.Engine
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "langsoft",
		Short: "Vocabulary highlighting backed by personal dictionaries",
		Long: `langsoft keeps a personal dictionary of the words you are learning,
highlights text by how well you know each word, and records which words
a document contains.`,
		Version:           "dev",
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.init() },
		PersistentPostRun: func(cmd *cobra.Command, args []string) { a.close() },
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .langsoft/config.yaml or ~/.config/langsoft/config.yaml)")
	flags.StringP("user", "u", "", "dictionary owner, overrides the config")
	flags.String("dict-dir", "", "dictionary folder, overrides the config")
	_ = a.v.BindPFlag("user", flags.Lookup("user"))
	_ = a.v.BindPFlag("dictionary_dir", flags.Lookup("dict-dir"))

	root.AddCommand(
		a.classifyCmd(),
		a.defineCmd(),
		a.deleteCmd(),
		a.tierCmd(),
		a.annotateCmd(),
		a.scanCmd(),
		a.styleCmd(),
		a.fetchCmd(),
		a.watchCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, path, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg, a.cfgPath = cfg, path

	if cfg.Log.File != "" {
		closeLog, err := log.Init(cfg.Log.File, log.ParseLevel(cfg.Log.Level))
		if err != nil {
			return err
		}
		a.closeLog = closeLog
	}
	log.Debug(log.CatCLI, "Starting", "config", path, "user", cfg.User)
	return nil
}

func (a *app) close() {
	if a.eng != nil {
		a.eng.Close()
		a.eng = nil
	}
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}

// tokenizer builds the configured tokenizer once per invocation.
func (a *app) tokenizer() (*tokenize.Tokenizer, error) {
	if a.tk != nil {
		return a.tk, nil
	}
	a.tk = tokenize.Default
	if a.cfg.Tokenizer.Japanese {
		seg, err := tokenize.NewJapaneseSegmenter()
		if err != nil {
			return nil, fmt.Errorf("loading Japanese dictionary: %w", err)
		}
		a.tk = tokenize.New(seg)
	}
	return a.tk, nil
}

// engine opens the dictionary folder and wraps it in an engine.
func (a *app) engine() (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	tk, err := a.tokenizer()
	if err != nil {
		return nil, err
	}
	overlap, err := phrase.ParseOverlap(a.cfg.Phrases.Overlap)
	if err != nil {
		return nil, err
	}
	store, err := dictionary.Open(a.cfg.DictionaryDir, a.cfg.User, dictionary.WithTokenizer(tk))
	if err != nil {
		return nil, err
	}
	a.eng = engine.New(store, engine.Options{
		Tokenizer:      tk,
		Overlap:        overlap,
		SelectionClass: a.cfg.Selection.Class,
	})
	return a.eng, nil
}

// reference loads the configured reference dictionary, or returns nil when
// none is configured.
func (a *app) reference() (*reference.Index, error) {
	if a.cfg.Reference.Path == "" {
		return nil, nil
	}
	entries, err := reference.Load(a.cfg.Reference.Path)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatCLI, "Loaded reference dictionary", "path", a.cfg.Reference.Path, "entries", len(entries))
	return reference.NewIndex(entries), nil
}
