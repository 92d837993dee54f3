// Package identity owns the console's durable state: the local Agent cache
// mirroring remote profiles, the Update ledger for not-yet-reachable
// recipients, the service configuration and the locale catalog.
package identity

import (
	"os"
	"time"

	"github.com/goccy/go-json"
)

// Config is the console's system-level configuration.
type Config struct {
	Port         string `json:"port"`
	DatabasePath string `json:"database_path"`
	RedisAddr    string `json:"redis_addr"`
	JWTKey       string `json:"jwt_key"`

	DirectoryURL       string `json:"directory_url"`
	DirectoryTokenURL  string `json:"directory_token_url"`
	DirectoryClientID  string `json:"directory_client_id"`
	DirectorySecret    string `json:"directory_secret"`
	DirectoryAudience  string `json:"directory_audience"`
	DirectoryTimeoutMS int    `json:"directory_timeout_ms"`

	MailGateway string `json:"mail_gateway"`
	MailSender  string `json:"mail_sender"`

	// ViewerRole is the remote catalog name of the baseline role every
	// authorized caller must hold.
	ViewerRole string `json:"viewer_role"`
}

// ParseConfig reads a JSON config file into cfg. A missing file is not an
// error; defaults and environment variables still apply.
func ParseConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Defaults fills unset fields, with environment overrides for secrets.
func (c *Config) Defaults() {
	if key := os.Getenv("CONSOLE_JWT_KEY"); key != "" {
		c.JWTKey = key
	}
	if secret := os.Getenv("CONSOLE_DIRECTORY_SECRET"); secret != "" {
		c.DirectorySecret = secret
	}
	if c.Port == "" {
		c.Port = ":8084"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "console.db"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.DirectoryTokenURL == "" && c.DirectoryURL != "" {
		c.DirectoryTokenURL = c.DirectoryURL + "/oauth/token"
	}
	if c.DirectoryTimeoutMS <= 0 {
		c.DirectoryTimeoutMS = 10000
	}
	if c.ViewerRole == "" {
		c.ViewerRole = "viewer"
	}
	if c.MailSender == "" {
		c.MailSender = "noreply@rosterd.net"
	}
}

// DirectoryTimeout is the per-call deadline for remote directory requests.
func (c *Config) DirectoryTimeout() time.Duration {
	return time.Duration(c.DirectoryTimeoutMS) * time.Millisecond
}
