package config

import (
	"fmt"

	"github.com/spf13/viper"

	"bookalign/internal/aligner"
	"bookalign/internal/anchor"
)

// Configuration provides type-safe access to application settings
type Configuration struct {
	viper *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anchor.ngram_size", 3)
	v.SetDefault("anchor.target_per_tokens", 50)
	v.SetDefault("anchor.min_separation", 25)
	v.SetDefault("anchor.allow_sentence_cross", false)
	v.SetDefault("anchor.stopwords", []string{})
	v.SetDefault("aligner.fillers", []string{})
	v.SetDefault("aligner.equivalences", map[string]string{})
	v.SetDefault("aligner.workers", 0)
	v.SetDefault("output.dir", ".")
}

// NewConfiguration creates a new Configuration instance with default settings
func NewConfiguration() *Configuration {
	v := viper.New()
	setDefaults(v)
	return &Configuration{viper: v}
}

// NewConfigurationFromFile creates a Configuration instance from a config file
func NewConfigurationFromFile(configFile string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return &Configuration{viper: v}, nil
}

// NewConfigurationFromEnv creates a Configuration instance that reads from environment variables
func NewConfigurationFromEnv() (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	// Set up environment variable mapping
	v.SetEnvPrefix("ALIGN")
	v.AutomaticEnv()

	// Map specific environment variables
	v.BindEnv("anchor.ngram_size", "ALIGN_NGRAM_SIZE")
	v.BindEnv("anchor.target_per_tokens", "ALIGN_TARGET_PER_TOKENS")
	v.BindEnv("anchor.min_separation", "ALIGN_MIN_SEPARATION")
	v.BindEnv("anchor.allow_sentence_cross", "ALIGN_ALLOW_SENTENCE_CROSS")
	v.BindEnv("aligner.workers", "ALIGN_WORKERS")
	v.BindEnv("output.dir", "ALIGN_OUTPUT_DIR")

	return &Configuration{viper: v}, nil
}

// GetNGramSize returns the initial anchor n-gram size
func (c *Configuration) GetNGramSize() int {
	return c.viper.GetInt("anchor.ngram_size")
}

// GetTargetPerTokens returns the desired anchor density denominator
func (c *Configuration) GetTargetPerTokens() int {
	return c.viper.GetInt("anchor.target_per_tokens")
}

// GetMinSeparation returns the minimum distance between relaxed-pass occurrences
func (c *Configuration) GetMinSeparation() int {
	return c.viper.GetInt("anchor.min_separation")
}

// GetAllowSentenceCross returns whether anchors may span sentence boundaries
func (c *Configuration) GetAllowSentenceCross() bool {
	return c.viper.GetBool("anchor.allow_sentence_cross")
}

// GetStopwords returns additional stopwords beyond the built-in set
func (c *Configuration) GetStopwords() []string {
	return c.viper.GetStringSlice("anchor.stopwords")
}

// GetFillers returns additional filler words beyond the built-in set
func (c *Configuration) GetFillers() []string {
	return c.viper.GetStringSlice("aligner.fillers")
}

// GetEquivalences returns additional token equivalences beyond the built-in table
func (c *Configuration) GetEquivalences() map[string]string {
	return c.viper.GetStringMapString("aligner.equivalences")
}

// GetWorkers returns the window alignment worker count (0 means one per CPU)
func (c *Configuration) GetWorkers() int {
	return c.viper.GetInt("aligner.workers")
}

// GetOutputDir returns the directory alignment artifacts are written to
func (c *Configuration) GetOutputDir() string {
	return c.viper.GetString("output.dir")
}

// SetOutputDir overrides the artifact output directory; the CLI uses this
// for its -out flag, which takes precedence over file and env settings.
func (c *Configuration) SetOutputDir(dir string) {
	c.viper.Set("output.dir", dir)
}

// AnchorPolicy builds the anchor discovery policy: library defaults merged
// with the configured overrides and extra stopwords.
func (c *Configuration) AnchorPolicy() anchor.Policy {
	policy := anchor.DefaultPolicy()
	policy.NGramSize = c.GetNGramSize()
	policy.TargetPerTokens = c.GetTargetPerTokens()
	policy.MinSeparation = c.GetMinSeparation()
	policy.AllowSentenceCross = c.GetAllowSentenceCross()
	for _, w := range c.GetStopwords() {
		policy.Stopwords[w] = true
	}
	return policy
}

// AlignerOptions builds the windowed aligner options: library defaults
// merged with the configured fillers and equivalences.
func (c *Configuration) AlignerOptions() aligner.Options {
	opts := aligner.DefaultOptions()
	for _, f := range c.GetFillers() {
		opts.Fillers[f] = true
	}
	for from, to := range c.GetEquivalences() {
		opts.Equivalences[from] = to
	}
	if workers := c.GetWorkers(); workers > 0 {
		opts.Workers = workers
	}
	return opts
}
