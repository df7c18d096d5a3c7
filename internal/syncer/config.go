package syncer

import (
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

const defaultConcurrency = 100

// TLSConfig controls the transport used for every outbound request. Unlike
// a package-mirroring tool talking to a trusted origin, this domain's
// remote gateway is commonly reached over a self-signed or absent
// certificate, so NewConfig defaults InsecureSkipVerify to true (unlike a
// zero-valued TLSConfig{}, which still verifies). A TOML config can set
// insecure_skip_verify = false to opt back into verification.
type TLSConfig struct {
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" env:"MEDIAMIRROR_TLS_INSECURE_SKIP_VERIFY"`
	MinVersion         string `toml:"min_version" env:"MEDIAMIRROR_TLS_MIN_VERSION"`
	CACertFile         string `toml:"ca_cert_file" env:"MEDIAMIRROR_TLS_CA_CERT_FILE"`
}

// BuildTLSConfig constructs a *tls.Config from t.
func (t *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: t.InsecureSkipVerify} // #nosec G402 -- domain gateway commonly presents an unverifiable cert

	switch t.MinVersion {
	case "", "1.2":
		cfg.MinVersion = tls.VersionTLS12
	case "1.3":
		cfg.MinVersion = tls.VersionTLS13
	default:
		return nil, errors.New("invalid tls min_version: must be 1.2 or 1.3")
	}

	if t.CACertFile != "" {
		pem, err := os.ReadFile(t.CACertFile)
		if err != nil {
			return nil, errors.Wrap(err, "read ca_cert_file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse ca_cert_file")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// LogConfig configures the process-wide slog logger.
type LogConfig struct {
	Level  string `toml:"level" env:"MEDIAMIRROR_LOG_LEVEL"`
	Format string `toml:"format" env:"MEDIAMIRROR_LOG_FORMAT"`
}

// ShouldShowProgress reports whether download progress bars should be
// drawn; bars and log lines at debug/info level otherwise interleave badly.
func (lc *LogConfig) ShouldShowProgress() bool {
	level := strings.ToLower(lc.Level)
	return level == "error" || level == "warn" || level == "warning"
}

// Apply configures the process-wide slog default logger from lc.
func (lc *LogConfig) Apply() error {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return errors.New("invalid log level: " + lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(lc.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "", "text", "plain":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return errors.New("invalid log format: " + lc.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Config is the full TOML-backed configuration, overridable by environment
// variables tagged with `env:"..."`, itself overridable by CLI flags.
type Config struct {
	MediaRoot     string    `toml:"media_root" env:"MEDIAMIRROR_MEDIA_ROOT"`
	Pool          []string  `toml:"pool" env:"MEDIAMIRROR_POOL"`
	Sentinel      string    `toml:"sentinel" env:"MEDIAMIRROR_SENTINEL"`
	SelectedPaths []string  `toml:"selected_paths" env:"MEDIAMIRROR_SELECTED_PATHS"`
	Concurrency   int       `toml:"concurrency" env:"MEDIAMIRROR_CONCURRENCY"`
	NFOEnabled    bool      `toml:"nfo" env:"MEDIAMIRROR_NFO"`
	Log           LogConfig `toml:"log"`
	TLS           TLSConfig `toml:"tls"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Concurrency: defaultConcurrency,
		TLS:         TLSConfig{InsecureSkipVerify: true},
	}
}

// LoadFile decodes a TOML configuration file into c.
func (c *Config) LoadFile(path string) error {
	_, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(err, "decode toml config")
	}
	return nil
}

// ApplyEnv overrides c's fields from environment variables tagged "env",
// recursing into nested structs, matching the teacher's layered-override
// convention (env beats TOML, CLI flags beat both — applied by the caller).
func (c *Config) ApplyEnv() error {
	return applyEnvToStruct(c)
}

// Check validates the configuration for obvious misconfiguration.
func (c *Config) Check() error {
	if c.MediaRoot == "" {
		return errors.New("media_root is not set")
	}
	if !path.IsAbs(c.MediaRoot) {
		return errors.New("media_root must be an absolute path")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be a positive integer")
	}
	// Pool is intentionally not required here: a run that passes --url
	// bypasses pool selection entirely and never consults it.
	return nil
}

func applyEnvToStruct(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("applyEnvToStruct requires a pointer to struct")
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		if envTag := fieldType.Tag.Get("env"); envTag != "" {
			if err := setFieldFromEnv(field, envTag); err != nil {
				return errors.Wrap(err, "field "+fieldType.Name)
			}
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field.Addr().Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func setFieldFromEnv(field reflect.Value, envVar string) error {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		n, err := strconv.Atoi(envValue)
		if err != nil {
			return errors.New("invalid integer value for " + envVar + ": " + envValue)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return errors.New("invalid boolean value for " + envVar + ": " + envValue)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return errors.New("unsupported slice type for " + envVar)
		}
		parts := strings.Split(envValue, ",")
		values := make([]string, len(parts))
		for i, p := range parts {
			values[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return errors.New("unsupported field type for " + envVar + ": " + field.Kind().String())
	}
	return nil
}
