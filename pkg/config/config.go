// Package config provides configuration types, defaults, and persistence for langsoft.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/japaniel/langsoft/pkg/dictionary"
	"github.com/japaniel/langsoft/pkg/log"
	"github.com/japaniel/langsoft/pkg/phrase"
)

// EnvPrefix is the prefix of environment overrides, e.g. LANGSOFT_USER or
// LANGSOFT_HIGHLIGHT_KNOWN_COLOR.
const EnvPrefix = "LANGSOFT"

// LocalConfigPath is both the first lookup location and where a default
// config is written when none exists.
const LocalConfigPath = ".langsoft/config.yaml"

// Config holds all settings.
type Config struct {
	User          string          `mapstructure:"user"`
	DictionaryDir string          `mapstructure:"dictionary_dir"`
	DBPath        string          `mapstructure:"db_path"`
	Log           LogConfig       `mapstructure:"log"`
	Tokenizer     TokenizerConfig `mapstructure:"tokenizer"`
	Phrases       PhraseConfig    `mapstructure:"phrases"`
	Highlight     HighlightConfig `mapstructure:"highlight"`
	Selection     SelectionConfig `mapstructure:"selection"`
	Reference     ReferenceConfig `mapstructure:"reference"`
	Watch         WatchConfig     `mapstructure:"watch"`
}

// LogConfig configures the debug log. An empty File disables logging.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type TokenizerConfig struct {
	// Japanese enables morphological segmentation of Japanese text.
	Japanese bool `mapstructure:"japanese"`
}

type PhraseConfig struct {
	Overlap string `mapstructure:"overlap"` // "longest" (default) or "layered"
}

// TierStyle is the highlight of one familiarity tier.
type TierStyle struct {
	Enabled bool   `mapstructure:"enabled"`
	Color   string `mapstructure:"color"` // hex color e.g. "#93FF85"
}

type HighlightConfig struct {
	Unknown   TierStyle `mapstructure:"unknown"`
	SemiKnown TierStyle `mapstructure:"semiknown"`
	Known     TierStyle `mapstructure:"known"`
	// CSSClass scopes the generated stylesheet to elements inside this class.
	CSSClass          string `mapstructure:"css_class"`
	CollaboratorColor string `mapstructure:"collaborator_color"`
}

type SelectionConfig struct {
	Class string `mapstructure:"class"`
}

type ReferenceConfig struct {
	// Path of a jmdict-simplified or WordNet JSON file; empty disables suggestions.
	Path string `mapstructure:"path"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		User:          "me",
		DictionaryDir: "dictionaries",
		DBPath:        "langsoft.db",
		Log:           LogConfig{Level: "info"},
		Phrases:       PhraseConfig{Overlap: string(phrase.OverlapLongest)},
		Highlight: HighlightConfig{
			Unknown:           TierStyle{Enabled: true, Color: "#FF0000"},
			SemiKnown:         TierStyle{Enabled: true, Color: "#FFFF00"},
			Known:             TierStyle{Enabled: true, Color: "#93FF85"},
			CollaboratorColor: "#8AB4F8",
		},
		Selection: SelectionConfig{Class: "selection"},
		Watch:     WatchConfig{Debounce: 500 * time.Millisecond},
	}
}

// SetDefaults registers every default on v, so that each key can also be
// overridden through the environment.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("user", d.User)
	v.SetDefault("dictionary_dir", d.DictionaryDir)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tokenizer.japanese", d.Tokenizer.Japanese)
	v.SetDefault("phrases.overlap", d.Phrases.Overlap)
	for name, ts := range map[string]TierStyle{"unknown": d.Highlight.Unknown, "semiknown": d.Highlight.SemiKnown, "known": d.Highlight.Known} {
		v.SetDefault("highlight."+name+".enabled", ts.Enabled)
		v.SetDefault("highlight."+name+".color", ts.Color)
	}
	v.SetDefault("highlight.css_class", d.Highlight.CSSClass)
	v.SetDefault("highlight.collaborator_color", d.Highlight.CollaboratorColor)
	v.SetDefault("selection.class", d.Selection.Class)
	v.SetDefault("reference.path", d.Reference.Path)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Load reads the configuration into v and returns it with the path of the
// file used. Lookup order when cfgFile is empty:
//  1. .langsoft/config.yaml (current directory)
//  2. ~/.config/langsoft/config.yaml (user config)
//
// When neither exists a default config is written to .langsoft/config.yaml;
// if that fails the defaults are used without a file.
func Load(v *viper.Viper, cfgFile string) (Config, string, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(LocalConfigPath); err == nil {
		v.SetConfigFile(LocalConfigPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "langsoft"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && cfgFile == "":
			if writeErr := WriteDefaultConfig(LocalConfigPath); writeErr == nil {
				v.SetConfigFile(LocalConfigPath)
				_ = v.ReadInConfig()
			}
		default:
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	log.Debug(log.CatConfig, "Loaded config", "path", v.ConfigFileUsed(), "user", cfg.User)
	return cfg, v.ConfigFileUsed(), nil
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.User == "" || strings.ContainsAny(c.User, `/\`) {
		return fmt.Errorf("user %q must be a non-empty name without path separators", c.User)
	}
	if c.DictionaryDir == "" {
		return fmt.Errorf("dictionary_dir must be set")
	}
	if _, err := phrase.ParseOverlap(c.Phrases.Overlap); err != nil {
		return fmt.Errorf("phrases.overlap: %w", err)
	}
	for tier, ts := range c.Highlight.Tiers() {
		if ts.Enabled && !hexColor.MatchString(ts.Color) {
			return fmt.Errorf("highlight.%s.color %q is not a hex color", tier, ts.Color)
		}
	}
	if c.Highlight.CSSClass != "" && strings.ContainsAny(c.Highlight.CSSClass, " .{}") {
		return fmt.Errorf("highlight.css_class %q must be a single class name", c.Highlight.CSSClass)
	}
	return nil
}

// Tiers returns the per-tier styles keyed by tier.
func (h HighlightConfig) Tiers() map[dictionary.Tier]TierStyle {
	return map[dictionary.Tier]TierStyle{
		dictionary.TierUnknown:   h.Unknown,
		dictionary.TierSemiKnown: h.SemiKnown,
		dictionary.TierKnown:     h.Known,
	}
}

// DefaultConfigTemplate returns the commented config file written on first run.
func DefaultConfigTemplate() string {
	d := Defaults()
	return fmt.Sprintf(`# langsoft configuration

# Your name; your dictionary is <dictionary_dir>/<user>.json.
# Every other .json file in the folder is a read-only collaborator dictionary.
user: %s
dictionary_dir: %s

# Encounter log written by "langsoft scan".
db_path: %s

log:
  file: ""      # empty disables the debug log
  level: %s

tokenizer:
  japanese: false   # segment Japanese text into words (loads the IPA dictionary)

phrases:
  overlap: %s   # longest | layered

highlight:
  unknown:
    enabled: true
    color: "%s"
  semiknown:
    enabled: true
    color: "%s"
  known:
    enabled: true
    color: "%s"
  css_class: ""
  collaborator_color: "%s"

selection:
  class: %s

reference:
  path: ""      # jmdict-simplified or WordNet JSON used for suggested meanings

watch:
  debounce: %s
`, d.User, d.DictionaryDir, d.DBPath, d.Log.Level, d.Phrases.Overlap,
		d.Highlight.Unknown.Color, d.Highlight.SemiKnown.Color, d.Highlight.Known.Color,
		d.Highlight.CollaboratorColor, d.Selection.Class, d.Watch.Debounce)
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
