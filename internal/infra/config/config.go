package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-3-flash-preview"

// Config is the full application configuration.
type Config struct {
	Includes []string       `yaml:"includes,omitempty"`
	BLE      BLEConfig      `yaml:"ble"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      LLMConfig      `yaml:"llm"`
	UI       UIConfig       `yaml:"ui"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// BLEConfig selects and tunes the Bluetooth transport.
type BLEConfig struct {
	// Backend is one of "gatt", "goble" or "mock".
	Backend string `yaml:"backend"`
	// Device auto-selects a peripheral by address or name, skipping the picker.
	Device           string        `yaml:"device,omitempty"`
	HCIDevice        int           `yaml:"hci_device"`
	ScanTimeout      time.Duration `yaml:"scan_timeout"`
	OptionalServices []string      `yaml:"optional_services"`
}

// AnalysisConfig controls the "analyze latest payload" feature.
type AnalysisConfig struct {
	Enabled bool `yaml:"enabled"`
	// Provider names an llm.providers entry; empty means llm.default_provider.
	Provider string `yaml:"provider,omitempty"`
	// Fallbacks are provider names tried in order when Provider fails.
	Fallbacks      []string      `yaml:"fallbacks,omitempty"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerMin int           `yaml:"requests_per_min"`
	BurstSize      int           `yaml:"burst_size"`
	MaxInputBytes  int           `yaml:"max_input_bytes"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// UIConfig holds terminal UI settings.
type UIConfig struct {
	AltScreen    bool   `yaml:"alt_screen"`
	ASCIISymbols bool   `yaml:"ascii_symbols"`
	TimeFormat   string `yaml:"time_format"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	// Output is the file the stdout exporter writes to; empty means stderr.
	Output string `yaml:"output,omitempty"`
}

// DataDir returns the per-user state directory, $HOME/.bluepulse.
// Falls back to "./.bluepulse" if $HOME cannot be determined.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bluepulse"
	}
	return filepath.Join(home, ".bluepulse")
}

// DefaultPath is the config file looked up when --config is not given.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		BLE: BLEConfig{
			Backend:          "gatt",
			ScanTimeout:      5 * time.Second,
			OptionalServices: []string{"6e400001-b5a3-f393-e0a9-e50e24dcca9e", "heart_rate", "battery_service"},
		},
		Analysis: AnalysisConfig{
			Enabled:        true,
			Timeout:        30 * time.Second,
			RequestsPerMin: 10,
			BurstSize:      2,
			MaxInputBytes:  4096,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: []ProviderConfig{
				{Name: "gemini", Type: "gemini", Model: DefaultModel},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 3,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		UI: UIConfig{
			AltScreen:  true,
			TimeFormat: "15:04:05",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: filepath.Join(DataDir(), "bluepulse.log"),
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// A provider list in the file replaces the default one instead of
	// merging element-wise.
	cfg.LLM.Providers = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		r := &includeResolver{visited: map[string]bool{absPath: true}}
		if err := r.process(cfg, filepath.Dir(absPath)); err != nil {
			return nil, err
		}
		// The main file takes precedence over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	if len(cfg.LLM.Providers) == 0 {
		cfg.LLM.Providers = Defaults().LLM.Providers
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("BLUEPULSE_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps BLUEPULSE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLUEPULSE_BLE_BACKEND"); v != "" {
		cfg.BLE.Backend = v
	}
	if v := os.Getenv("BLUEPULSE_BLE_DEVICE"); v != "" {
		cfg.BLE.Device = v
	}
	if v := os.Getenv("BLUEPULSE_BLE_HCI_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BLE.HCIDevice = n
		}
	}
	if v := os.Getenv("BLUEPULSE_BLE_SCAN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.BLE.ScanTimeout = d
		}
	}
	if v := os.Getenv("BLUEPULSE_BLE_OPTIONAL_SERVICES"); v != "" {
		cfg.BLE.OptionalServices = splitAndTrim(v, ",")
	}
	if v := os.Getenv("BLUEPULSE_ANALYSIS_ENABLED"); v != "" {
		cfg.Analysis.Enabled = v == "true"
	}
	if v := os.Getenv("BLUEPULSE_ANALYSIS_PROVIDER"); v != "" {
		cfg.Analysis.Provider = v
	}
	if v := os.Getenv("BLUEPULSE_ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Analysis.Timeout = d
		}
	}
	if v := os.Getenv("BLUEPULSE_ANALYSIS_REQUESTS_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Analysis.RequestsPerMin = n
		}
	}
	if v := os.Getenv("BLUEPULSE_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("BLUEPULSE_LLM_MODEL"); v != "" {
		if p := cfg.Provider(cfg.LLM.DefaultProvider); p != nil {
			p.Model = v
		}
	}
	if v := os.Getenv("BLUEPULSE_UI_ASCII_SYMBOLS"); v == "true" || v == "1" {
		cfg.UI.ASCIISymbols = true
	}
	if v := os.Getenv("BLUEPULSE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BLUEPULSE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("BLUEPULSE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("BLUEPULSE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("BLUEPULSE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("BLUEPULSE_TRACER_OUTPUT"); v != "" {
		cfg.Tracer.Output = v
	}

	// Per-provider API key overrides: BLUEPULSE_LLM_PROVIDER_<NAME>_API_KEY.
	// Gemini providers also fall back to API_KEY and GEMINI_API_KEY.
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		envKey := fmt.Sprintf("BLUEPULSE_LLM_PROVIDER_%s_API_KEY", envName(p.Name))
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
			continue
		}
		if p.APIKey != "" || p.Type != "gemini" {
			continue
		}
		for _, k := range []string{"GEMINI_API_KEY", "API_KEY"} {
			if v := os.Getenv(k); v != "" {
				p.APIKey = v
				break
			}
		}
	}
}

// Provider returns the named provider entry, or nil.
func (c *Config) Provider(name string) *ProviderConfig {
	for i := range c.LLM.Providers {
		if c.LLM.Providers[i].Name == name {
			return &c.LLM.Providers[i]
		}
	}
	return nil
}

// AnalysisProvider returns the provider entry used for analysis, or nil.
func (c *Config) AnalysisProvider() *ProviderConfig {
	name := c.Analysis.Provider
	if name == "" {
		name = c.LLM.DefaultProvider
	}
	return c.Provider(name)
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// splitAndTrim splits s by sep, trims whitespace and drops empty elements.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values in provider API keys and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if !strings.HasPrefix(key, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
		}
		cfg.LLM.Providers[i].APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
