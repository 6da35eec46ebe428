package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig is the remotes.toml document.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named QuillBooking server profile.
type Remote struct {
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	Actor   string `toml:"actor,omitempty"` // audit actor for edits made through this remote
	NATSURL string `toml:"nats_url,omitempty"`
}

// Validate checks that the remote's URLs can be dialed.
func (r Remote) Validate() error {
	if err := checkURL(r.URL, "http", "https"); err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if r.NATSURL == "" {
		return nil
	}
	// nats.go accepts a comma-separated server list.
	for _, u := range strings.Split(r.NATSURL, ",") {
		if err := checkURL(strings.TrimSpace(u), "nats", "tls", "ws", "wss"); err != nil {
			return fmt.Errorf("nats url: %w", err)
		}
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%q is not an absolute %s URL", raw, strings.Join(schemes, "/"))
	}
	return nil
}

func (c RemotesConfig) names() []string {
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c RemotesConfig) lookup(name string) (Remote, error) {
	r, ok := c.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

// remotesFile is remotes.toml under ~/.local/state/quillbooking.
type remotesFile struct {
	path string
}

func openRemotesFile() (remotesFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return remotesFile{}, err
	}
	return remotesFile{path: filepath.Join(home, ".local", "state", "quillbooking", "remotes.toml")}, nil
}

func (f remotesFile) load() (RemotesConfig, error) {
	cfg := RemotesConfig{}
	if _, err := toml.DecodeFile(f.path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return RemotesConfig{}, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// save replaces the file atomically. Tokens are secrets, so the directory
// is 0700 and the file 0600.
func (f remotesFile) save(cfg RemotesConfig) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// update loads the document, applies fn and saves the result unless fn fails.
func (f remotesFile) update(fn func(*RemotesConfig) error) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return f.save(cfg)
}

// activeRemote is read once per process to seed flag defaults. A missing or
// unreadable file yields the zero Remote.
var activeRemote = sync.OnceValue(func() Remote {
	f, err := openRemotesFile()
	if err != nil {
		return Remote{}
	}
	cfg, err := f.load()
	if err != nil {
		return Remote{}
	}
	return cfg.Remotes[cfg.Active]
})

// maskToken shows the first four characters and the length of a token.
// Short tokens are hidden entirely.
func maskToken(token string) string {
	switch {
	case token == "":
		return "-"
	case len(token) <= 8:
		return strings.Repeat("*", len(token))
	default:
		return fmt.Sprintf("%s****(%d chars)", token[:4], len(token))
	}
}
