package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Backend modes. An empty mode means local.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config is the full codexmonitor configuration.
type Config struct {
	// Backend selects where git commands execute.
	Backend BackendConfig `json:"backend,omitempty"`

	// Daemon configures `codexmonitor daemon`.
	Daemon DaemonConfig `json:"daemon,omitempty"`

	Git GitConfig `json:"git,omitempty"`

	Workspaces WorkspacesConfig `json:"workspaces,omitempty"`

	// CodexHome overrides CODEX_HOME. Supports ~ and environment variables.
	CodexHome string `json:"codexHome,omitempty"`
}

type BackendConfig struct {
	Mode          string `json:"mode,omitempty"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	Token         string `json:"token,omitempty"`
	DialTimeoutMs int    `json:"dialTimeoutMs,omitempty"`
}

// Remote reports whether commands are forwarded to a daemon.
func (b BackendConfig) Remote() bool {
	return b.Mode == ModeRemote
}

// DialTimeout returns the transport dial budget.
func (b BackendConfig) DialTimeout() time.Duration {
	if b.DialTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.DialTimeoutMs) * time.Millisecond
}

type DaemonConfig struct {
	Bind  string `json:"bind,omitempty"`
	Port  int    `json:"port,omitempty"`
	Token string `json:"token,omitempty"`
}

// Addr is the listen address.
func (d DaemonConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Bind, d.Port)
}

type GitConfig struct {
	LogLimit   int             `json:"logLimit,omitempty"`
	RootsDepth int             `json:"rootsDepth,omitempty"`
	AutoFetch  AutoFetchConfig `json:"autoFetch,omitempty"`
}

type AutoFetchConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	// Every is a cron spec (with seconds) or an "@every 5m" descriptor.
	Every string `json:"every,omitempty"`
}

type WorkspacesConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Mode:          ModeLocal,
			DialTimeoutMs: 10000,
		},
		Daemon: DaemonConfig{
			Bind: "127.0.0.1",
			Port: 4732,
		},
		Git: GitConfig{
			LogLimit:   40,
			RootsDepth: 2,
			AutoFetch: AutoFetchConfig{
				Every: "@every 10m",
			},
		},
	}
}

// applyDefaults fills zero values a hand-edited file may leave out.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Backend.Mode == "" {
		c.Backend.Mode = d.Backend.Mode
	}
	if c.Daemon.Bind == "" {
		c.Daemon.Bind = d.Daemon.Bind
	}
	if c.Daemon.Port == 0 {
		c.Daemon.Port = d.Daemon.Port
	}
	if c.Git.LogLimit == 0 {
		c.Git.LogLimit = d.Git.LogLimit
	}
	if c.Git.RootsDepth == 0 {
		c.Git.RootsDepth = d.Git.RootsDepth
	}
	if c.Git.AutoFetch.Every == "" {
		c.Git.AutoFetch.Every = d.Git.AutoFetch.Every
	}
}

// Validate rejects settings the dispatchers cannot act on.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case "", ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Backend.Mode)
	}
	if c.Backend.Remote() && c.Backend.RemoteURL == "" {
		return fmt.Errorf("backend.remoteUrl is required in remote mode")
	}
	if c.Daemon.Port < 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	if c.Git.LogLimit < 0 {
		return fmt.Errorf("git.logLimit must not be negative: %d", c.Git.LogLimit)
	}
	if c.Git.RootsDepth < 0 {
		return fmt.Errorf("git.rootsDepth must not be negative: %d", c.Git.RootsDepth)
	}
	return nil
}

// Store owns one config file and the current snapshot of it.
type Store struct {
	path string

	current  atomic.Pointer[Config]
	mu       sync.Mutex // serializes Load/Save and guards watchers
	watchers []func(*Config)
}

// NewStore creates a Store for path. Call Load before Get.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.current.Store(Default())
	return s
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current snapshot. Callers must not mutate it.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// Load reads the file. A missing file yields the defaults.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			c := Default()
			s.current.Store(c)
			return c, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", s.path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s.current.Store(&c)
	return &c, nil
}

// Save writes c and makes it the current snapshot.
func (s *Store) Save(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Update applies fn to a copy of the current snapshot and saves it.
func (s *Store) Update(fn func(c *Config)) (*Config, error) {
	next := *s.Get()
	fn(&next)
	if err := s.Save(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// OnChange registers a callback for reloads triggered by Watch.
func (s *Store) OnChange(fn func(*Config)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Watch reloads the file whenever it changes until stop is closed. The
// parent directory is watched so editors that replace the file are seen.
func (s *Store) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				s.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()
	return nil
}

func (s *Store) reload() {
	s.mu.Lock()
	c, err := s.load()
	watchers := append([]func(*Config){}, s.watchers...)
	s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("Config reload failed, keeping previous")
		return
	}
	log.Info().Str("mode", c.Backend.Mode).Msg("Config reloaded")
	for _, w := range watchers {
		w(c)
	}
}
