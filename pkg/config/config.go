// Package config provides a reusable loader for ENR node configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.2.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"enr-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified configuration for an ENR node: transport listen
// settings, the periodic broadcaster cadences, and the weight/threshold
// tunables for septal gates and entropy pricing.
type Config struct {
	Node struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		Region         string   `mapstructure:"region" json:"region"`
	} `mapstructure:"node" json:"node"`

	Intervals struct {
		GradientSeconds      uint64 `mapstructure:"gradient_seconds" json:"gradient_seconds"`
		ElectionSeconds      uint64 `mapstructure:"election_seconds" json:"election_seconds"`
		CreditSyncSeconds    uint64 `mapstructure:"credit_sync_seconds" json:"credit_sync_seconds"`
		MaxMessageAgeSeconds uint64 `mapstructure:"max_message_age_seconds" json:"max_message_age_seconds"`
	} `mapstructure:"intervals" json:"intervals"`

	SeptalGate struct {
		TimeoutWeight    float64 `mapstructure:"timeout_weight" json:"timeout_weight"`
		CreditWeight     float64 `mapstructure:"credit_weight" json:"credit_weight"`
		ReputationWeight float64 `mapstructure:"reputation_weight" json:"reputation_weight"`
	} `mapstructure:"septal_gate" json:"septal_gate"`

	EntropyWeights struct {
		Network  float64 `mapstructure:"network" json:"network"`
		Compute  float64 `mapstructure:"compute" json:"compute"`
		Storage  float64 `mapstructure:"storage" json:"storage"`
		Temporal float64 `mapstructure:"temporal" json:"temporal"`
	} `mapstructure:"entropy_weights" json:"entropy_weights"`

	Security struct {
		RequireSignatures bool `mapstructure:"require_signatures" json:"require_signatures"`
	} `mapstructure:"security" json:"security"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// Default returns the configuration used when no config file or override is
// present.
func Default() Config {
	var c Config
	c.Node.ListenAddr = "/ip4/0.0.0.0/tcp/0"
	c.Node.DiscoveryTag = "enr-nexus"
	c.Intervals.GradientSeconds = 10
	c.Intervals.ElectionSeconds = 3600
	c.Intervals.CreditSyncSeconds = 30
	c.Intervals.MaxMessageAgeSeconds = 60
	c.SeptalGate.TimeoutWeight = 0.4
	c.SeptalGate.CreditWeight = 0.3
	c.SeptalGate.ReputationWeight = 0.3
	c.EntropyWeights.Network = 0.3
	c.EntropyWeights.Compute = 0.3
	c.EntropyWeights.Storage = 0.2
	c.EntropyWeights.Temporal = 0.2
	c.Security.RequireSignatures = false
	c.Logging.Level = "info"
	return c
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig = Default()

// Load reads configuration files and merges any environment-specific
// overrides on top of Default(). The resulting configuration is stored in
// AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration file is loaded. A
// missing config file is not an error: Default()'s values are used as-is.
func Load(env string) (*Config, error) {
	AppConfig = Default()

	viper.SetConfigName("enr")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ENR_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("ENR_ENV", ""))
}
