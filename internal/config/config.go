package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"belkon/internal/domain"
)

// Config models belkon.yml.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Modules struct {
		Catalog map[string]ModuleEntry `yaml:"catalog"`
	} `yaml:"modules"`
	Rollup struct {
		// ComponentOrder lists component codes in display order; codes
		// outside the list sort after it alphabetically.
		ComponentOrder []string          `yaml:"component_order"`
		SpecialUnits   map[string]string `yaml:"special_units"`
	} `yaml:"rollup"`
	Webhooks []Webhook `yaml:"webhooks"`
}

type ModuleEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Webhook struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with bk config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Modules.Catalog == nil {
		return fmt.Errorf("config.modules.catalog is required")
	}
	for id, entry := range c.Modules.Catalog {
		if id == "" {
			return fmt.Errorf("config.modules.catalog contains empty module id")
		}
		if entry.Name == "" {
			return fmt.Errorf("module %s has empty name", id)
		}
	}
	if len(c.Rollup.ComponentOrder) == 0 {
		return fmt.Errorf("config.rollup.component_order is required")
	}
	seen := map[string]bool{}
	for _, code := range c.Rollup.ComponentOrder {
		if code == "" {
			return fmt.Errorf("config.rollup.component_order contains empty code")
		}
		if seen[code] {
			return fmt.Errorf("config.rollup.component_order repeats %s", code)
		}
		seen[code] = true
	}
	for tag, label := range c.Rollup.SpecialUnits {
		if tag == "" {
			return fmt.Errorf("config.rollup.special_units contains empty tag")
		}
		if label == "" {
			return fmt.Errorf("special unit %s has empty label", tag)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// SpecialUnitLabels merges configured labels over the built-in defaults.
func (c *Config) SpecialUnitLabels() map[string]string {
	labels := make(map[string]string, len(domain.SpecialUnitLabels))
	for tag, label := range domain.SpecialUnitLabels {
		labels[tag] = label
	}
	for tag, label := range c.Rollup.SpecialUnits {
		labels[tag] = label
	}
	return labels
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "belkon.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: :8080

auth:
  jwt_secret: ""

modules:
  catalog:
    ic_kontrol:
      name: "İç Kontrol"
      description: "İç kontrol standartları uyum eylem planı"
    butce:
      name: "Bütçe"
      description: "Bütçe hazırlama ve izleme"
    risk:
      name: "Risk Yönetimi"
      description: "Kurumsal risk kaydı"
    kalite:
      name: "Kalite Denetimi"
      description: "Kalite güvence ve denetim takibi"

rollup:
  component_order: [KOS, RDS, KFS, BIS, IS]
  special_units:
    ust_yonetim: "Üst Yönetim"
    ic_denetim: "İç Denetim Birimi"
    teftis_kurulu: "Teftiş Kurulu"
    strateji_gelistirme: "Strateji Geliştirme Birimi"

webhooks: []
`
