package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/rpc"
)

// FileName is the user configuration file looked up in the Spark folder.
const FileName = "spark.cue"

//go:embed schema.cue
var schema string

// Config holds every Spark setting.
type Config struct {
	Library LibraryConfig `json:"library"`
	Server  ServerConfig  `json:"server"`
	Log     LogConfig     `json:"log"`
}

type LibraryConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

type ServerConfig struct {
	Debug     bool   `json:"debug"`
	Socket    string `json:"socket"`
	Timeout   int    `json:"timeout"`
	CacheSize int    `json:"cache_size"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// Error reports an invalid configuration file.
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Parse("", nil)
}

// Load reads the configuration file at path. With an empty path it reads
// spark.cue from the Spark folder, and a missing file there yields the
// defaults. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := library.Folder()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default()
		}
		return nil, &Error{File: path, Err: err}
	}
	return Parse(path, data)
}

// Parse unifies data with the schema and decodes the result. name is used
// in error positions.
func Parse(name string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	s := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	v := s.LookupPath(cue.ParsePath("#Config"))

	if len(data) > 0 {
		user := ctx.CompileBytes(data, cue.Filename(name))
		if err := user.Err(); err != nil {
			return nil, &Error{File: name, Err: err}
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &Error{File: name, Err: err}
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, &Error{File: name, Err: err}
	}
	return &cfg, nil
}

// Apply sets process-wide state derived from the configuration.
func (c *Config) Apply() error {
	f, err := library.ParseFormat(c.Library.Format)
	if err != nil {
		return err
	}
	library.FileFormat = f
	return nil
}

// LibraryPath returns the configured library path or the shared default.
func (c *Config) LibraryPath() (string, error) {
	if c.Library.Path != "" {
		return c.Library.Path, nil
	}
	return library.SharedLibraryPath()
}

// SocketPath returns the configured socket or the service socket in the
// Spark folder.
func (c *Config) SocketPath() (string, error) {
	if c.Server.Socket != "" {
		return c.Server.Socket, nil
	}
	dir, err := library.Folder()
	if err != nil {
		return "", err
	}
	return rpc.SocketPath(dir, c.Server.Debug), nil
}

// Timeout is the client call timeout. Zero disables it.
func (c *Config) Timeout() time.Duration {
	if c.Server.Timeout == 0 {
		return -1
	}
	return time.Duration(c.Server.Timeout) * time.Second
}

// Level maps log.level to a slog level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
