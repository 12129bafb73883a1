// Package config loads the per-project .symdex.yaml file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name Find looks for.
const FileName = ".symdex.yaml"

const (
	DefaultDB       = ".symdex.db"
	DefaultDebounce = 300 * time.Millisecond
)

// Config is the project configuration. Relative paths are resolved against
// Dir, the directory holding the file.
type Config struct {
	// Classpath lists jar, aar and class-directory inputs.
	Classpath []string `yaml:"classpath"`

	// Stdlib is a JSON snapshot of the standard library. Empty means the
	// built-in minimal stdlib.
	Stdlib string `yaml:"stdlib"`

	// Sources are the roots walked for .kt, .kts and .java files.
	Sources []string `yaml:"sources"`

	// Exclude holds glob patterns matched against source base names and
	// directory names.
	Exclude []string `yaml:"exclude"`

	// DB is the SQLite cache path. "-" disables the cache.
	DB string `yaml:"db"`

	// Workers bounds classpath and source parallelism. 0 means NumCPU.
	Workers int `yaml:"workers"`

	// Script optionally replaces the built-in extractors with a Risor
	// extraction script.
	Script string `yaml:"script"`

	Watch WatchConfig `yaml:"watch"`

	Dir string `yaml:"-"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Sources: []string{"."},
		DB:      DefaultDB,
		Watch:   WatchConfig{Debounce: DefaultDebounce},
		Dir:     ".",
	}
}

// Load reads path and fills unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{"."}
	}
	if cfg.DB == "" {
		cfg.DB = DefaultDB
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find walks up from startDir looking for FileName. It returns the path of
// the first match, or "" when none exists up to the filesystem root.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("config: find: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config: find: %w", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must be >= 0, got %s", c.Watch.Debounce)
	}
	for _, p := range c.Exclude {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("config: bad exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

// Resolve returns p relative to the config directory unless it is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ClasspathPaths returns Classpath resolved against Dir.
func (c *Config) ClasspathPaths() []string {
	return c.resolveAll(c.Classpath)
}

// SourcePaths returns Sources resolved against Dir.
func (c *Config) SourcePaths() []string {
	return c.resolveAll(c.Sources)
}

// DBPath returns the resolved cache path, or "" when the cache is off.
func (c *Config) DBPath() string {
	if c.DB == "-" {
		return ""
	}
	return c.Resolve(c.DB)
}

// Excluded reports whether name, a file or directory base name, matches an
// exclude pattern.
func (c *Config) Excluded(name string) bool {
	for _, p := range c.Exclude {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (c *Config) resolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = c.Resolve(p)
	}
	return out
}
