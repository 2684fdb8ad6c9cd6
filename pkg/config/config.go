// Package config loads the workspace configuration from YAML and resolves
// API secrets.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Provider names a model backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
)

// ModelConfig selects and tunes the model backend.
type ModelConfig struct {
	Provider    Provider `yaml:"provider"`
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host,omitempty"` // ollama only
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float32  `yaml:"temperature"`
	TopP        float32  `yaml:"top_p"`
}

// ActorConfig describes one agent on the roster.
type ActorConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	JobTitle        string   `yaml:"job_title"`
	Role            string   `yaml:"role"`
	Leader          bool     `yaml:"leader,omitempty"`
	Abilities       []string `yaml:"abilities,omitempty"` // empty means all builtins
	MaxChainedCalls int      `yaml:"max_chained_calls"`
	StoppingPolicy  string   `yaml:"stopping_policy,omitempty"`
	ForceFunction   bool     `yaml:"force_function,omitempty"`
}

// WorkspaceConfig locates storage for one run.
type WorkspaceConfig struct {
	Name        string `yaml:"name"`
	StorageRoot string `yaml:"storage_root"`
	DBPath      string `yaml:"db_path"`
	LogDir      string `yaml:"log_dir"`
}

// ProjectConfig names the single project of a run.
type ProjectConfig struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// TransitionConfig is one permitted edge of the issue workflow.
type TransitionConfig struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MetricsConfig configures the Prometheus surface.
type MetricsConfig struct {
	Addr          string `yaml:"addr,omitempty"`
	PrometheusURL string `yaml:"prometheus_url,omitempty"`
}

// Config is the full configuration of one run.
type Config struct {
	Workspace WorkspaceConfig    `yaml:"workspace"`
	Project   ProjectConfig      `yaml:"project"`
	Model     ModelConfig        `yaml:"model"`
	Actors    []ActorConfig      `yaml:"actors"`
	Workflow  []TransitionConfig `yaml:"workflow,omitempty"` // empty means the default workflow
	Metrics   MetricsConfig      `yaml:"metrics,omitempty"`
}

// issueStatuses are the statuses a workflow transition may reference.
var issueStatuses = map[string]struct{}{
	"Open":        {},
	"In Progress": {},
	"Resolved":    {},
	"Reopened":    {},
	"Closed":      {},
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands, parses, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(expandEnv(raw))
}

// Parse parses config bytes that already had env substitution applied.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace.Name == "" {
		c.Workspace.Name = "osgpt"
	}
	if c.Workspace.StorageRoot == "" {
		c.Workspace.StorageRoot = "./workspace"
	}
	if c.Workspace.DBPath == "" {
		c.Workspace.DBPath = "./osgpt.db"
	}
	if c.Workspace.LogDir == "" {
		c.Workspace.LogDir = "./logs"
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.2
	}
	if c.Model.TopP == 0 {
		c.Model.TopP = 0.3
	}
	if c.Model.Host == "" && c.Model.Provider == ProviderOllama {
		c.Model.Host = "http://localhost:11434"
	}
	for i := range c.Actors {
		if c.Actors[i].MaxChainedCalls == 0 {
			c.Actors[i].MaxChainedCalls = 10
		}
		if c.Actors[i].StoppingPolicy == "" {
			c.Actors[i].StoppingPolicy = "activity"
		}
	}
}

// Validate checks the config for the problems that would otherwise surface
// mid-run.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model name must not be empty")
	}
	if c.Project.Key == "" || c.Project.Name == "" {
		return fmt.Errorf("project key and name must not be empty")
	}
	if len(c.Actors) == 0 {
		return fmt.Errorf("at least one actor must be configured")
	}

	leaders := 0
	seen := make(map[string]struct{}, len(c.Actors))
	for i := range c.Actors {
		a := &c.Actors[i]
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("actor %d: id and name must not be empty", i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate actor id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Leader {
			leaders++
		}
		switch a.StoppingPolicy {
		case "activity", "comment":
		default:
			return fmt.Errorf("actor %s: unknown stopping policy %q", a.ID, a.StoppingPolicy)
		}
		if a.MaxChainedCalls < 1 {
			return fmt.Errorf("actor %s: max_chained_calls must be positive", a.ID)
		}
	}
	if leaders != 1 {
		return fmt.Errorf("exactly one actor must be the project leader, got %d", leaders)
	}

	for i, tr := range c.Workflow {
		if tr.Name == "" {
			return fmt.Errorf("workflow transition %d: name must not be empty", i)
		}
		if _, ok := issueStatuses[tr.From]; !ok {
			return fmt.Errorf("workflow transition %q: unknown status %q", tr.Name, tr.From)
		}
		if _, ok := issueStatuses[tr.To]; !ok {
			return fmt.Errorf("workflow transition %q: unknown status %q", tr.Name, tr.To)
		}
	}
	return nil
}

// Leader returns the configured project leader.
func (c *Config) Leader() *ActorConfig {
	for i := range c.Actors {
		if c.Actors[i].Leader {
			return &c.Actors[i]
		}
	}
	return nil
}

// APIKeyEnv returns the environment variable name holding the provider's
// API key.
func (m *ModelConfig) APIKeyEnv() string {
	switch m.Provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
