// Package config loads and validates the blogpub configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
	Links   LinkConfig    `yaml:"links,omitempty"`
}

// SiteConfig describes the rendered site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url"`
	Author      string `yaml:"author,omitempty"`
	Description string `yaml:"description,omitempty"`
	Theme       string `yaml:"theme,omitempty"`
	AboutPath   string `yaml:"about,omitempty"` // entry source rendered as the About page
}

// ContentConfig describes where content comes from.
type ContentConfig struct {
	Repository Repository   `yaml:"repository"`
	Modules    []Repository `yaml:"modules,omitempty"` // nested content modules fetched into the content tree
	Dir        string       `yaml:"dir,omitempty"`     // posts directory inside the repository, defaults to "posts"
}

// Repository represents a Git repository to fetch.
type Repository struct {
	URL    string      `yaml:"url"`
	Name   string      `yaml:"name"`
	Branch string      `yaml:"branch,omitempty"`
	Path   string      `yaml:"path,omitempty"` // checkout location relative to the content root (modules only)
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents Git authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type"` // "none", "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// OutputConfig represents local output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"`
	Minify    bool   `yaml:"minify"`
}

// StorageConfig describes the blob container the site is uploaded to.
// The credential bundle itself is environment-supplied, never stored here:
// either AZURE_STORAGE_CONNECTION_STRING or the default credential chain
// (AZURE_TENANT_ID / AZURE_CLIENT_ID / AZURE_CLIENT_SECRET).
type StorageConfig struct {
	Account   string `yaml:"account"`
	Container string `yaml:"container"`
	Prune     bool   `yaml:"prune"` // delete remote blobs absent from the rendered tree
}

// DaemonConfig configures daemon mode.
type DaemonConfig struct {
	Listen        string   `yaml:"listen,omitempty"`
	Branch        string   `yaml:"branch,omitempty"` // webhook pushes to other branches are ignored
	WebhookSecret string   `yaml:"webhook_secret,omitempty"`
	QuietWindow   Duration `yaml:"quiet_window,omitempty"`
	MaxDelay      Duration `yaml:"max_delay,omitempty"`
	Schedule      Duration `yaml:"schedule,omitempty"` // periodic republish interval, 0 disables
	DataDir       string   `yaml:"data_dir,omitempty"`
}

// LinkConfig configures post-render link verification reporting.
type LinkConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; secrets arrive via environment, not the config file.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Blog"
	}
	if c.Site.Theme == "" {
		c.Site.Theme = "plain"
	}
	if c.Content.Dir == "" {
		c.Content.Dir = "posts"
	}
	if c.Content.Repository.Branch == "" {
		c.Content.Repository.Branch = "main"
	}
	if c.Content.Repository.Name == "" {
		c.Content.Repository.Name = "content"
	}
	for i := range c.Content.Modules {
		m := &c.Content.Modules[i]
		if m.Branch == "" {
			m.Branch = "main"
		}
		if m.Path == "" {
			m.Path = m.Name
		}
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./public"
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8080"
	}
	if c.Daemon.Branch == "" {
		c.Daemon.Branch = c.Content.Repository.Branch
	}
	if c.Daemon.QuietWindow <= 0 {
		c.Daemon.QuietWindow = Duration(5 * time.Second)
	}
	if c.Daemon.MaxDelay <= 0 {
		c.Daemon.MaxDelay = Duration(time.Minute)
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = "./blogpub-data"
	}
	// The Azure static-website container is literally named "$web". It cannot
	// be written in the config file because Load expands $-variables, so an
	// empty container means the static-website container.
	if c.Storage.Container == "" {
		c.Storage.Container = "$web"
	}
	if c.Links.Subject == "" {
		c.Links.Subject = "blogpub.links.broken"
	}
}

// Validate reports configuration errors that would make a run impossible.
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Content.Repository.URL == "" {
		return fmt.Errorf("content.repository.url is required")
	}
	for _, m := range c.Content.Modules {
		if m.URL == "" {
			return fmt.Errorf("content module %q has no url", m.Name)
		}
		if m.Name == "" {
			return fmt.Errorf("content module with url %s has no name", m.URL)
		}
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Site: SiteConfig{
			Title:       "My Blog",
			BaseURL:     "https://blog.example.com",
			Author:      "Jane Doe",
			Description: "Notes, recipes, and the occasional tutorial",
			Theme:       "plain",
			AboutPath:   "about.org",
		},
		Content: ContentConfig{
			Repository: Repository{
				URL:    "https://github.com/example/blog-content.git",
				Name:   "content",
				Branch: "main",
			},
			Modules: []Repository{
				{
					URL:    "https://github.com/example/recipes.git",
					Name:   "recipes",
					Branch: "main",
					Path:   "posts/recipes",
				},
			},
			Dir: "posts",
		},
		Output: OutputConfig{
			Directory: "./public",
			Clean:     true,
			Minify:    true,
		},
		Storage: StorageConfig{
			Account: "${AZURE_STORAGE_ACCOUNT}",
			Prune:   true,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
