package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/contextfit/types"
)

// Loader reads configuration in layers: defaults first, then an optional
// YAML or JSON file, then environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithPath("contextfit.yaml").
//	    WithEnvPrefix("CONTEXTFIT").
//	    Load()
type Loader struct {
	path       string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the CONTEXTFIT environment prefix and no
// file.
func NewLoader() *Loader {
	return &Loader{envPrefix: "CONTEXTFIT"}
}

// WithPath sets the configuration file. The extension selects the format:
// .json is parsed as JSON, everything else as YAML.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validator run after all layers are applied.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load applies the layers and returns the merged configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, err
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// MustLoad loads the configuration file and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return types.NewConfigError("read config file %s", l.path).WithCause(err)
	}

	if strings.EqualFold(filepath.Ext(l.path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return types.NewConfigError("parse %s", l.path).WithCause(err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return types.NewConfigError("parse %s", l.path).WithCause(err)
	}
	return nil
}

// applyEnv walks the struct and overrides fields whose env tag resolves to
// a set variable. Nested structs extend the prefix with an underscore.
func (l *Loader) applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}

		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			if err := l.applyEnv(field, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			return types.NewConfigError("environment override %s", key).WithCause(err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string lists.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
