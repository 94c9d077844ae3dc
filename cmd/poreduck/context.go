package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alexiswl/poreduck/internal/config"
)

type commandContext struct {
	configFlag   *string
	readsDirFlag *string

	// overrides is bound to command-specific flags. Cobra parses flags
	// before the root pre-run hook loads the config.
	overrides   config.Overrides
	maxInFlight int

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, readsDirFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		readsDirFlag: readsDirFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the configuration once and applies command-line
// overrides on top of it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		overrides := c.overrides
		if c.readsDirFlag != nil {
			overrides.ReadsDir = *c.readsDirFlag
		}
		if err := cfg.Apply(overrides); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// requireRunConfig returns the loaded config, failing when no reads
// directory was configured.
func (c *commandContext) requireRunConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireReadsDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// captureOverrides records flags whose zero value is meaningful.
func (c *commandContext) captureOverrides(cmd *cobra.Command) {
	if flag := cmd.Flags().Lookup("max-in-flight"); flag != nil && flag.Changed {
		value := c.maxInFlight
		c.overrides.MaxInFlight = &value
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
