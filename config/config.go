// Package config loads board client settings from the environment and the
// optional column set file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

const (
	EnvGatewayURL     = "BOARD_GATEWAY_URL"
	EnvToken          = "BOARD_TOKEN"
	EnvColumnsFile    = "BOARD_COLUMNS_FILE"
	EnvRequestTimeout = "BOARD_REQUEST_TIMEOUT"
	EnvDebug          = "DEBUG"

	DefaultRequestTimeout = 10 * time.Second
)

var ErrMissingGatewayURL = errors.New(EnvGatewayURL + " is not set")

type Config struct {
	GatewayURL     string
	Token          string
	Columns        domain.Columns
	RequestTimeout time.Duration
	Debug          bool
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Config{
		GatewayURL:     strings.TrimSpace(getenv(EnvGatewayURL)),
		Token:          getenv(EnvToken),
		Columns:        domain.DefaultColumns(),
		RequestTimeout: DefaultRequestTimeout,
	}
	if cfg.GatewayURL == "" {
		return Config{}, ErrMissingGatewayURL
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", EnvRequestTimeout, v)
		}
		cfg.RequestTimeout = d
	}
	if v := getenv(EnvDebug); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = dbg
	}
	if path := getenv(EnvColumnsFile); path != "" {
		cols, err := LoadColumns(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Columns = cols
	}
	return cfg, nil
}

type columnsFile struct {
	Columns domain.Columns `yaml:"columns"`
}

// LoadColumns reads a YAML file of the form
//
//	columns:
//	  - id: todo
//	    title: To Do
func LoadColumns(path string) (domain.Columns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read columns file: %w", err)
	}
	var f columnsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse columns file %s: %w", path, err)
	}
	for i := range f.Columns {
		if f.Columns[i].Title == "" {
			f.Columns[i].Title = string(f.Columns[i].ID)
		}
	}
	if err := f.Columns.Validate(); err != nil {
		return nil, fmt.Errorf("columns file %s: %w", path, err)
	}
	return f.Columns, nil
}
