package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Accounts is the credential store consumed by the transfer engine: a mapping
// from account name to its script-app API keys. The engine only ever reads
// it; the `login` command is the sole writer.
type Config struct {
	Accounts map[string]AccountConfig `toml:"accounts"`
	Database DatabaseConfig           `toml:"database"`
	HTTP     HTTPConfig               `toml:"http"`
}

// AccountConfig contains one Reddit account's script-app credentials.
// Each account must have its own client id/secret pair; the transfer engine
// refuses to run when source and destination share a client id.
type AccountConfig struct {
	Username     string `toml:"username"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains settings for the local run-log database.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HTTPConfig contains Reddit API client settings.
type HTTPConfig struct {
	UserAgent string  `toml:"user_agent"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
}

// Account looks up credentials for the named account.
func (c *Config) Account(name string) (AccountConfig, error) {
	acct, ok := c.Accounts[name]
	if !ok {
		return AccountConfig{}, fmt.Errorf("%w: %q (did you run `rdx login %s`?)", ErrMissingAccount, name, name)
	}
	if acct.ClientID == "" || acct.ClientSecret == "" {
		return AccountConfig{}, fmt.Errorf("%w for account %q", ErrMissingCredentials, name)
	}
	if acct.Username == "" {
		acct.Username = name
	}
	return acct, nil
}

// SetAccount stores credentials for the named account.
func (c *Config) SetAccount(name string, acct AccountConfig) {
	if c.Accounts == nil {
		c.Accounts = make(map[string]AccountConfig)
	}
	c.Accounts[name] = acct
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration back to disk as TOML.
func SaveConfig(config *Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
