package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/titanous/json5"
)

// Config is the root configuration for tako.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Server     ServerConfig     `json:"server"`
	Lock       LockConfig       `json:"lock"`
	AWS        AWSConfig        `json:"aws"`
	Generation GenerationConfig `json:"generation"`
	Agents     AgentsConfig     `json:"agents"`
	Delivery   DeliveryConfig   `json:"delivery"`
	Notify     NotifyConfig     `json:"notify"`
	Prompts    PromptsConfig    `json:"prompts"`
	Outcomes   OutcomesConfig   `json:"outcomes"`
	Metrics    MetricsConfig    `json:"metrics"`
	Tracing    TracingConfig    `json:"tracing"`
	Messages   MessagesConfig   `json:"messages"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`  // "debug" | "info" | "warn" | "error"
	LogFormat string `json:"logFormat"` // "text" | "json"
}

// ServerConfig configures the inbound webhook listener.
type ServerConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	WebhookPath   string `json:"webhookPath"`
	WebhookSecret string `json:"webhookSecret,omitempty"` // enables X-Signature-256 checks
}

// LockConfig selects the per-user lock store.
type LockConfig struct {
	Backend             string `json:"backend"` // "memory" | "sqlite" | "postgres" | "dynamodb" | "firestore"
	TTLSeconds          int    `json:"ttlSeconds"`
	SweepCron           string `json:"sweepCron"`
	SQLitePath          string `json:"sqlitePath,omitempty"`
	PostgresDSN         string `json:"postgresDsn,omitempty"`
	DynamoTable         string `json:"dynamoTable,omitempty"`
	FirestoreProject    string `json:"firestoreProject,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`
}

type AWSConfig struct {
	Region  string `json:"region"`
	Profile string `json:"profile,omitempty"`
}

// GenerationConfig selects the NLU/generation backend.
type GenerationConfig struct {
	Backend            string       `json:"backend"` // "bedrock-flow" | "genai" | "openai" | "mock"
	TimeoutSeconds     int          `json:"timeoutSeconds"`
	RateLimitPerMinute int          `json:"rateLimitPerMinute,omitempty"`
	MaxRetries         int          `json:"maxRetries"`        // opt-in, HTTP backends only
	Fallback           []string     `json:"fallback,omitempty"` // opt-in, tried in order when Backend fails
	Flow               FlowConfig   `json:"flow"`
	GenAI              GenAIConfig  `json:"genai"`
	OpenAI             OpenAIConfig `json:"openai"`
	Mock               MockConfig   `json:"mock"`
}

type FlowConfig struct {
	FlowID     string `json:"flowId"`
	AliasID    string `json:"aliasId"`
	InputNode  string `json:"inputNode"`
	OutputName string `json:"outputName"`
}

type GenAIConfig struct {
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model"`
	Vertex   bool   `json:"vertex"`
	Project  string `json:"project,omitempty"`
	Location string `json:"location,omitempty"`
}

type OpenAIConfig struct {
	APIBase string `json:"apiBase"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model"`
}

// MockConfig scripts generator output by substring match on the prompt.
type MockConfig struct {
	Rules   []MockRule `json:"rules,omitempty"`
	Default string     `json:"default"`
}

type MockRule struct {
	Contains string `json:"contains"`
	Output   string `json:"output"`
}

// AgentsConfig binds intents to Bedrock Agents. An intent without an agent
// id runs on the generation backend with its prompt template.
type AgentsConfig struct {
	LatePayment AgentRef `json:"pagamentoAtrasado"`
	Termination AgentRef `json:"demissaoRescisao"`
}

type AgentRef struct {
	AgentID string `json:"agentId,omitempty"`
	AliasID string `json:"aliasId,omitempty"`
}

// Configured reports whether both identifiers are set.
func (a AgentRef) Configured() bool {
	return a.AgentID != "" && a.AliasID != ""
}

// DeliveryConfig selects the outbound messaging channel.
type DeliveryConfig struct {
	Backend        string         `json:"backend"` // "zapi" | "whatsapp" | "log"
	TimeoutSeconds int            `json:"timeoutSeconds"`
	ZAPI           ZAPIConfig     `json:"zapi"`
	WhatsApp       WhatsAppConfig `json:"whatsapp"`
}

type ZAPIConfig struct {
	BaseURL     string `json:"baseUrl"`
	InstanceID  string `json:"instanceId,omitempty"`
	Token       string `json:"token,omitempty"`
	ClientToken string `json:"clientToken,omitempty"`
}

type WhatsAppConfig struct {
	APIBase       string `json:"apiBase"`
	AccessToken   string `json:"accessToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

// PromptsConfig layers prompt sources: Dir, then Pack, then the embedded
// defaults.
type PromptsConfig struct {
	Dir  string `json:"dir,omitempty"`
	Pack string `json:"pack,omitempty"`
}

type OutcomesConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// TracingConfig configures OTLP/HTTP trace export.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint"` // host:port
	Insecure    bool    `json:"insecure"`
	ServiceName string  `json:"serviceName"`
	SampleRatio float64 `json:"sampleRatio"`
}

type MessagesConfig struct {
	NonText string `json:"nonText"`
}

// DefaultConfigDir returns the default config directory (~/.tako).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tako"
	}
	return filepath.Join(home, ".tako")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it over the
// defaults. Hand-edited files with comments or trailing commas are accepted
// through a JSON5 fallback.
func Parse(data []byte) (*Config, error) {
	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = Defaults()
		if err5 := json5.Unmarshal(data, cfg); err5 != nil {
			return nil, err
		}
	}

	cfg.Lock.SQLitePath = ExpandPath(cfg.Lock.SQLitePath)
	cfg.Outcomes.DBPath = ExpandPath(cfg.Outcomes.DBPath)
	cfg.Prompts.Dir = ExpandPath(cfg.Prompts.Dir)
	cfg.Prompts.Pack = ExpandPath(cfg.Prompts.Pack)
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, "server.webhookPath must start with /")
	}

	if cfg.Lock.TTLSeconds < 1 {
		errs = append(errs, "lock.ttlSeconds must be >= 1")
	}
	switch cfg.Lock.Backend {
	case "memory":
	case "sqlite":
		if cfg.Lock.SQLitePath == "" {
			errs = append(errs, "lock.sqlitePath is required for the sqlite backend")
		}
	case "postgres":
		if cfg.Lock.PostgresDSN == "" {
			errs = append(errs, "lock.postgresDsn is required for the postgres backend")
		}
	case "dynamodb":
		if cfg.Lock.DynamoTable == "" {
			errs = append(errs, "lock.dynamoTable is required for the dynamodb backend")
		}
	case "firestore":
		if cfg.Lock.FirestoreProject == "" || cfg.Lock.FirestoreCollection == "" {
			errs = append(errs, "lock.firestoreProject and lock.firestoreCollection are required for the firestore backend")
		}
	default:
		errs = append(errs, "lock.backend must be one of: memory, sqlite, postgres, dynamodb, firestore")
	}

	if cfg.Generation.TimeoutSeconds < 1 {
		errs = append(errs, "generation.timeoutSeconds must be >= 1")
	}
	if cfg.Generation.RateLimitPerMinute < 0 {
		errs = append(errs, "generation.rateLimitPerMinute must be >= 0")
	}
	if cfg.Generation.MaxRetries < 0 || cfg.Generation.MaxRetries > 5 {
		errs = append(errs, "generation.maxRetries must be between 0 and 5")
	}
	errs = append(errs, validateGenerationBackend(cfg.Generation, cfg.Generation.Backend)...)
	seen := map[string]bool{cfg.Generation.Backend: true}
	for _, name := range cfg.Generation.Fallback {
		if seen[name] {
			errs = append(errs, fmt.Sprintf("generation.fallback: %s is listed twice", name))
			continue
		}
		seen[name] = true
		errs = append(errs, validateGenerationBackend(cfg.Generation, name)...)
	}

	for name, ref := range map[string]AgentRef{
		"pagamentoAtrasado": cfg.Agents.LatePayment,
		"demissaoRescisao":  cfg.Agents.Termination,
	} {
		if (ref.AgentID == "") != (ref.AliasID == "") {
			errs = append(errs, fmt.Sprintf("agents.%s: agentId and aliasId must be set together", name))
		}
	}

	if cfg.Delivery.TimeoutSeconds < 1 {
		errs = append(errs, "delivery.timeoutSeconds must be >= 1")
	}
	switch cfg.Delivery.Backend {
	case "zapi":
		z := cfg.Delivery.ZAPI
		if z.BaseURL == "" || z.InstanceID == "" || z.Token == "" {
			errs = append(errs, "delivery.zapi.baseUrl, instanceId and token are required for zapi")
		}
	case "whatsapp":
		w := cfg.Delivery.WhatsApp
		if w.AccessToken == "" || w.PhoneNumberID == "" {
			errs = append(errs, "delivery.whatsapp.accessToken and phoneNumberId are required for whatsapp")
		}
	case "log":
	default:
		errs = append(errs, "delivery.backend must be one of: zapi, whatsapp, log")
	}

	if cfg.Notify.Telegram.Enabled && (cfg.Notify.Telegram.Token == "" || cfg.Notify.Telegram.ChatID == 0) {
		errs = append(errs, "notify.telegram.token and chatId are required when enabled")
	}
	if cfg.Outcomes.Enabled && cfg.Outcomes.DBPath == "" {
		errs = append(errs, "outcomes.dbPath is required when enabled")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be between 0 and 1")
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, "tracing.endpoint is required when enabled")
	}
	if strings.TrimSpace(cfg.Messages.NonText) == "" {
		errs = append(errs, "messages.nonText must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateGenerationBackend(g GenerationConfig, name string) []string {
	var errs []string
	switch name {
	case "bedrock-flow":
		if g.Flow.FlowID == "" || g.Flow.AliasID == "" {
			errs = append(errs, "generation.flow.flowId and generation.flow.aliasId are required for bedrock-flow")
		}
	case "genai":
		if g.GenAI.Vertex && (g.GenAI.Project == "" || g.GenAI.Location == "") {
			errs = append(errs, "generation.genai.project and generation.genai.location are required with vertex")
		}
		if !g.GenAI.Vertex && g.GenAI.APIKey == "" {
			errs = append(errs, "generation.genai.apiKey is required without vertex")
		}
	case "openai":
		if g.OpenAI.APIBase == "" {
			errs = append(errs, "generation.openai.apiBase is required for openai")
		}
	case "mock":
	default:
		errs = append(errs, fmt.Sprintf("generation backend %q must be one of: bedrock-flow, genai, openai, mock", name))
	}
	return errs
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
