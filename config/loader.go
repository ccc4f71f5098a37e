package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables bound onto config keys.
// GLOWBOOK_CLOUD_SUPABASE_URL binds to cloud.supabase.url (and the other
// dot/underscore splits of the same key).
const EnvPrefix = "GLOWBOOK_"

// FileSystem abstracts file lookups so the loader can be tested.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem implements FileSystem with the os package and godotenv.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Options holds loader dependencies and explicit file overrides.
type Options struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Environ    func() []string
}

// Option configures LoadConfig.
type Option func(*Options)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) Option {
	return func(o *Options) { o.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) Option {
	return func(o *Options) { o.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) Option {
	return func(o *Options) { o.EnvFile = path }
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(fn func() []string) Option {
	return func(o *Options) { o.Environ = fn }
}

// LoadConfig resolves config.yml and .env for serviceName, overlays
// GLOWBOOK_* environment variables and unmarshals the result into cfg.
func LoadConfig(serviceName string, cfg interface{}, opts ...Option) error {
	o := Options{FileSystem: OSFileSystem{}, Environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	configFile := o.ConfigFile
	if configFile == "" {
		configFile = firstExisting(o.FileSystem, configSearchPaths(serviceName))
	}
	envFile := o.EnvFile
	if envFile == "" {
		envFile = firstExisting(o.FileSystem, envSearchPaths(serviceName))
	}

	v := viper.New()
	if configFile != "" && o.FileSystem.Exists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// .env values never override variables already present in the process.
	if envFile != "" && o.FileSystem.Exists(envFile) {
		if err := o.FileSystem.LoadEnv(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	bindEnv(v, o.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/.env", serviceName),
		fmt.Sprintf("./.env.%s", serviceName),
		"./.env",
		"../.env",
	}
}

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		v.Set(resolveKey(v, strings.TrimPrefix(key, EnvPrefix)), value)
	}
}

// resolveKey picks the config key an env var name refers to: a key already
// present in the loaded config wins, then the deepest existing parent with
// the remainder joined by underscores, then the fully dotted form.
func resolveKey(v *viper.Viper, envKey string) string {
	variants := keyVariants(envKey)
	for _, k := range variants {
		if v.IsSet(k) {
			return k
		}
	}
	parts := strings.Split(strings.ToLower(envKey), "_")
	for i := len(parts) - 1; i >= 1; i-- {
		if v.IsSet(strings.Join(parts[:i], ".")) {
			return strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_")
		}
	}
	return strings.Join(parts, ".")
}

// keyVariants returns the config keys an env var name may refer to.
//
//	CLOUD_SUPABASE_ANON_KEY -> cloud_supabase_anon_key, cloud.supabase.anon.key,
//	                           cloud.supabase_anon_key, cloud.supabase.anon_key, ...
func keyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) == 1 {
		return parts
	}
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(strings.Join(parts, "_"))
	add(strings.Join(parts, "."))
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}
	return out
}
