package atlas

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration.
type Config struct {
	MQTT           MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	Maps           []MapConfig       `yaml:"maps" json:"maps"`
	Transforms     []TransformConfig `yaml:"transforms,omitempty" json:"transforms,omitempty"`
	CacheDir       string            `yaml:"cacheDir,omitempty" json:"cacheDir,omitempty"`
	MaxFetchVoxels int               `yaml:"maxFetchVoxels,omitempty" json:"maxFetchVoxels,omitempty"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// MapConfig describes one probabilistic label map source.
type MapConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic,omitempty" json:"topic,omitempty"` // MQTT topic delivering payloads
	File  string `yaml:"file,omitempty" json:"file,omitempty"`   // local payload file
	Space string `yaml:"space,omitempty" json:"space,omitempty"`
}

// TransformConfig declares an affine transform between two reference spaces.
type TransformConfig struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	Affine Affine3 `yaml:"affine" json:"affine"`
}

// GetMapByID returns the map config for the given ID.
func (c *Config) GetMapByID(id string) *MapConfig {
	for i := range c.Maps {
		if c.Maps[i].ID == id {
			return &c.Maps[i]
		}
	}
	return nil
}

// Warper builds an AffineWarper from the configured space transforms.
func (c *Config) Warper() *AffineWarper {
	w := NewAffineWarper()
	for _, t := range c.Transforms {
		w.RegisterTransform(t.From, t.To, t.Affine)
	}
	return w
}

// LoadConfig loads the service configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if len(config.Maps) == 0 {
		return nil, fmt.Errorf("at least one map must be defined")
	}
	for i, mc := range config.Maps {
		if mc.ID == "" {
			return nil, fmt.Errorf("maps[%d].id is required", i)
		}
		if mc.Topic == "" && mc.File == "" {
			return nil, fmt.Errorf("maps[%d]: either topic or file is required for %s", i, mc.ID)
		}
		if mc.Topic != "" && config.MQTT.Broker == "" {
			return nil, fmt.Errorf("mqtt.broker is required when map %s uses a topic", mc.ID)
		}
	}
	for i, tc := range config.Transforms {
		if tc.From == "" || tc.To == "" {
			return nil, fmt.Errorf("transforms[%d]: from and to are required", i)
		}
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
