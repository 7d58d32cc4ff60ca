package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aweris/castor"
	"github.com/aweris/castor/internal/backend"
	backendlocal "github.com/aweris/castor/internal/backend/local"
	s3backend "github.com/aweris/castor/internal/backend/s3"
	"github.com/aweris/castor/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "castor",
	Short: "Content-addressable artifact hashing and transfer CLI",
	Long:  "CLI for hashing files and directories, moving artifacts between storage backends, and syncing the local artifact store with OCI registries.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/castor/config.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "artifact store directory (default: ~/.local/share/castor)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("jobs", 0, "transfer concurrency (default: backend-specific)")

	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("jobs", rootCmd.PersistentFlags().Lookup("jobs"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CASTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("cache_dir", defaultCacheDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "castor")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "castor")
	}
	return ".castor"
}

func defaultCacheDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "castor")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "castor")
	}
	return ".castor"
}

func getCacheDir() string {
	return viper.GetString("cache_dir")
}

func getJobs() int {
	return viper.GetInt("jobs")
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func backendSettings() backend.Settings {
	return backend.Settings{
		S3: s3backend.Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
		},
	}
}

func openStore() (*store.Local, error) {
	return store.NewLocal(getCacheDir())
}

// newEngine builds an engine for the scheme, wired to the persistent
// artifact store and, for local backends, a persistent fingerprint cache.
func newEngine(ctx context.Context, scheme string, log *zap.Logger) (*castor.Engine, *store.Local, error) {
	b, desc, err := backend.ForScheme(ctx, scheme, backendSettings())
	if err != nil {
		return nil, nil, err
	}

	artifacts, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	opts := []castor.Option{
		castor.WithDescriptor(desc),
		castor.WithArtifactStore(artifacts),
		castor.WithLogger(log),
	}
	if scheme == castor.SchemeLocal {
		fps := castor.NewFileFingerprints(
			filepath.Join(getCacheDir(), "fingerprints.msgpack"),
			backendlocal.Fingerprint,
		)
		opts = append(opts, castor.WithFingerprintCache(fps))
	}

	return castor.New(b, opts...), artifacts, nil
}
