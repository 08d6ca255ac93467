package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/sessiontree/internal/parser"
)

// Config holds all application configuration.
type Config struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	DataDir        string        `json:"-"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	MaxLineBytes   int           `json:"max_line_bytes"`
	ExportFormat   string        `json:"export_format"`
	WriteTimeout   time.Duration `json:"-"`

	// Extra tool names merged into the built-in location table.
	LocalTools  []string `json:"local_tools,omitempty"`
	RemoteTools []string `json:"remote_tools,omitempty"`
}

const (
	envDataDir     = "SESSIONTREE_DATA_DIR"
	envLocalTools  = "SESSIONTREE_LOCAL_TOOLS"
	envRemoteTools = "SESSIONTREE_REMOTE_TOOLS"
)

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	return Config{
		Host:           "127.0.0.1",
		Port:           8090,
		DataDir:        filepath.Join(home, ".sessiontree"),
		MaxUploadBytes: 256 << 20,
		MaxLineBytes:   20 << 20,
		ExportFormat:   "text",
		WriteTimeout:   30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file, and env,
// without parsing CLI flags. Use this for subcommands that manage
// their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host           string   `json:"host"`
		Port           int      `json:"port"`
		MaxUploadBytes int64    `json:"max_upload_bytes"`
		MaxLineBytes   int      `json:"max_line_bytes"`
		ExportFormat   string   `json:"export_format"`
		LocalTools     []string `json:"local_tools"`
		RemoteTools    []string `json:"remote_tools"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port > 0 {
		c.Port = file.Port
	}
	if file.MaxUploadBytes > 0 {
		c.MaxUploadBytes = file.MaxUploadBytes
	}
	if file.MaxLineBytes > 0 {
		c.MaxLineBytes = file.MaxLineBytes
	}
	if file.ExportFormat != "" {
		c.ExportFormat = file.ExportFormat
	}
	c.LocalTools = append(c.LocalTools, file.LocalTools...)
	c.RemoteTools = append(c.RemoteTools, file.RemoteTools...)
	return nil
}

// loadEnv applies comma-separated tool lists from the environment.
// They replace any lists read from the config file.
func (c *Config) loadEnv() {
	if v := os.Getenv(envLocalTools); v != "" {
		c.LocalTools = splitList(v)
	}
	if v := os.Getenv(envRemoteTools); v != "" {
		c.RemoteTools = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Tools returns the built-in tool location table extended with the
// configured local and remote names.
func (c *Config) Tools() *parser.ToolLocations {
	tools := parser.DefaultToolLocations()
	tools.AddLocal(c.LocalTools...)
	tools.AddRemote(c.RemoteTools...)
	return tools
}

// DecodeOptions returns the decoder limits from the config.
func (c *Config) DecodeOptions() parser.DecodeOptions {
	return parser.DecodeOptions{MaxLineBytes: c.MaxLineBytes}
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8090, "Port to listen on")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		}
	})
}
