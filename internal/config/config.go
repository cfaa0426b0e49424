package config

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/agenthands/intake/internal/core/model"
)

// FieldPattern describes how one field is found in request text: any of the
// labels followed by a colon, then a run of characters matching Value.
type FieldPattern struct {
	Field   model.Field `toml:"field" yaml:"field"`
	Labels  []string    `toml:"labels" yaml:"labels"`
	Value   string      `toml:"value" yaml:"value"`     // regexp character class, e.g. `[\d,]`
	Numeric bool        `toml:"numeric" yaml:"numeric"` // strip thousands separators
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Prompt   string `toml:"prompt"`
}

type StoreConfig struct {
	Backend  string `toml:"backend"` // memory, sqlite, memgraph
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ServerConfig struct {
	Port     string `toml:"port"`
	Schedule string `toml:"schedule"` // cron spec for periodic runs; empty disables
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

type BrokerConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

type SlackConfig struct {
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
}

type Config struct {
	Store         StoreConfig    `toml:"store"`
	LLM           LLMConfig      `toml:"llm"`
	Server        ServerConfig   `toml:"server"`
	Log           LogConfig      `toml:"log"`
	Broker        BrokerConfig   `toml:"broker"`
	Slack         SlackConfig    `toml:"slack"`
	CaseDetection string         `toml:"case_detection"` // lpa or components
	RosterPath    string         `toml:"roster_path"`
	Roster        model.Roster   `toml:"roster"`
	Patterns      []FieldPattern `toml:"patterns"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read config file '%s'", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "failed to parse TOML")
	}

	if cfg.RosterPath != "" {
		roster, err := LoadRoster(cfg.RosterPath)
		if err != nil {
			return nil, err
		}
		cfg.Roster = roster
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration that runs fully in memory with the
// built-in roster and pattern table.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "intake.events"
	}
	if c.CaseDetection == "" {
		c.CaseDetection = "lpa"
	}
	if len(c.Roster) == 0 {
		c.Roster = DefaultRoster()
	}
	if len(c.Patterns) == 0 {
		c.Patterns = DefaultPatterns()
	}
}

// ApplyEnv overrides values from the environment.
func (c *Config) ApplyEnv() {
	envOverride(&c.Store.Backend, "INTAKE_STORE_BACKEND")
	envOverride(&c.Store.URI, "INTAKE_STORE_URI")
	envOverride(&c.Store.User, "MEMGRAPH_USER")
	envOverride(&c.Store.Password, "MEMGRAPH_PASSWORD")
	envOverride(&c.LLM.Provider, "LLM_PROVIDER")
	envOverride(&c.LLM.Model, "LLM_MODEL")
	envOverride(&c.LLM.APIKey, "LLM_API_KEY")
	envOverride(&c.LLM.BaseURL, "LLM_BASE_URL")
	envOverride(&c.Broker.URL, "AMQP_URL")
	envOverride(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	envOverride(&c.Slack.ChannelID, "SLACK_CHANNEL_ID")
	envOverride(&c.Server.Port, "PORT")
	envOverride(&c.Server.Schedule, "INTAKE_SCHEDULE")
}

func envOverride(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

type rosterFile struct {
	Handlers model.Roster `yaml:"handlers"`
}

// LoadRoster reads a YAML roster file:
//
//	handlers:
//	  - id: 1
//	    name: Alice
//	    skills:
//	      Billing Issue: [Invoice Discrepancy, Payment Delay]
func LoadRoster(path string) (model.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read roster file '%s'", path)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "failed to parse roster file '%s'", path)
	}
	if len(rf.Handlers) == 0 {
		return nil, eris.Errorf("roster file '%s' has no handlers", path)
	}

	return rf.Handlers, nil
}

func DefaultPatterns() []FieldPattern {
	return []FieldPattern{
		{Field: model.FieldCustomerName, Labels: []string{"Name"}, Value: `[A-Za-z .]`},
		{Field: model.FieldIdentifier, Labels: []string{"SSN", "TIN"}, Value: `[\d-]`},
		{Field: model.FieldLoanAmount, Labels: []string{"Loan Amount"}, Value: `[\d,]`, Numeric: true},
		{Field: model.FieldRequestType, Labels: []string{"Request Type"}, Value: `[A-Za-z ]`},
		{Field: model.FieldSubRequestType, Labels: []string{"Sub-Request Type"}, Value: `[A-Za-z ]`},
	}
}

func DefaultRoster() model.Roster {
	billing := []string{"Invoice Discrepancy", "Payment Delay", "Refund Request"}
	tech := []string{"Bug Report", "Feature Assistance", "Hardware Setup"}
	account := []string{"Profile Change", "Password Reset", "Account Deactivation"}
	general := []string{"Product Info", "Service Feedback", "Partnership Request"}

	return model.Roster{
		{ID: 1, Name: "Alice", Skills: map[string][]string{"Billing Issue": billing}},
		{ID: 2, Name: "Bob", Skills: map[string][]string{"Technical Support": tech}},
		{ID: 3, Name: "Charlie", Skills: map[string][]string{"Account Update": account}},
		{ID: 4, Name: "David", Skills: map[string][]string{"General Inquiry": general}},
		{ID: 5, Name: "Ella", Skills: map[string][]string{"Billing Issue": billing}},
		{ID: 6, Name: "Frank", Skills: map[string][]string{"Technical Support": tech}},
		{ID: 7, Name: "Grace", Skills: map[string][]string{"Account Update": account}},
		{ID: 8, Name: "Hank", Skills: map[string][]string{"General Inquiry": general}},
		{ID: 9, Name: "Ivy", Skills: map[string][]string{"Billing Issue": billing}},
		{ID: 10, Name: "Jack", Skills: map[string][]string{"Technical Support": tech}},
	}.Clone()
}
