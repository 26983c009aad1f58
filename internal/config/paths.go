package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Paths is the on-disk layout under the app home.
type Paths struct {
	// Root is the app home, $CODEXMONITOR_HOME or ~/.codexmonitor.
	Root string
}

// Layout names the files under Root.
var Layout = struct {
	ConfigFile    string
	WorkspacesDB  string
	AutoFetchFile string
	LogsDir       string
}{
	ConfigFile:    "config.json",
	WorkspacesDB:  "workspaces.db",
	AutoFetchFile: "autofetch.json",
	LogsDir:       "logs",
}

// NewPaths creates a layout rooted at root. Empty root uses the environment.
func NewPaths(root string) *Paths {
	if root == "" {
		root = os.Getenv("CODEXMONITOR_HOME")
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home, _ = os.Getwd()
		}
		root = filepath.Join(home, ".codexmonitor")
	}
	root = ExpandPath(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Paths{Root: root}
}

func (p *Paths) ConfigFile() string {
	return filepath.Join(p.Root, Layout.ConfigFile)
}

// WorkspacesDB is the SQLite registry, overridable by workspaces.dbPath.
func (p *Paths) WorkspacesDB(c *Config) string {
	if c != nil && c.Workspaces.DBPath != "" {
		return ExpandPath(c.Workspaces.DBPath)
	}
	return filepath.Join(p.Root, Layout.WorkspacesDB)
}

func (p *Paths) AutoFetchFile() string {
	return filepath.Join(p.Root, Layout.AutoFetchFile)
}

func (p *Paths) LogsDir() string {
	return filepath.Join(p.Root, Layout.LogsDir)
}

// EnsureDirs creates the home directory tree.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ResolveCodexHome picks CODEX_HOME: the config override, then the
// environment, then ~/.codex. The result is expanded but need not exist.
func ResolveCodexHome(c *Config) string {
	if c != nil && strings.TrimSpace(c.CodexHome) != "" {
		return ExpandPath(strings.TrimSpace(c.CodexHome))
	}
	if env := strings.TrimSpace(os.Getenv("CODEX_HOME")); env != "" {
		return ExpandPath(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex")
}

// ExpandPath expands a leading ~ and $VAR, ${VAR} and %VAR% references.
// Unknown variables are left as written.
func ExpandPath(p string) string {
	return expandPath(p, lookupEnv)
}

func expandPath(p string, lookup func(string) (string, bool)) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, ok := lookup("HOME"); ok && home != "" {
			p = home + p[1:]
		} else if home, err := os.UserHomeDir(); err == nil {
			p = home + p[1:]
		}
	}
	return expandVars(p, lookup)
}

func expandVars(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		switch s[i] {
		case '$':
			name, width := scanDollar(s[i+1:])
			if name == "" {
				b.WriteByte(s[i])
				i++
				continue
			}
			if v, ok := lookup(name); ok {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+1+width])
			}
			i += 1 + width
		case '%':
			end := strings.IndexByte(s[i+1:], '%')
			if end <= 0 || !isVarName(s[i+1:i+1+end]) {
				b.WriteByte(s[i])
				i++
				continue
			}
			name := s[i+1 : i+1+end]
			if v, ok := lookup(name); ok {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+2+end])
			}
			i += end + 2
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// scanDollar returns the variable name after '$' and how many bytes it spans.
func scanDollar(s string) (string, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end <= 1 || !isVarName(s[1:end]) {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && isVarByte(s[n], n == 0) {
		n++
	}
	return s[:n], n
}

func isVarName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isVarByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

func isVarByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// lookupEnv falls back to a case-insensitive match, and to USERPROFILE for
// HOME on Windows.
func lookupEnv(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	if name == "HOME" && runtime.GOOS == "windows" {
		if v, ok := os.LookupEnv("USERPROFILE"); ok {
			return v, true
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
