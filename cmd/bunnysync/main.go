package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lostsignal/bunnysync/internal/blob"
	"github.com/lostsignal/bunnysync/internal/config"
	"github.com/lostsignal/bunnysync/internal/sync"
	"github.com/lostsignal/bunnysync/internal/utils"
	"github.com/lostsignal/bunnysync/internal/version"
	"github.com/lostsignal/bunnysync/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dotEnvFile = ".env"

var home, _ = os.UserHomeDir()

// flag name -> config key
var flagKeys = map[string]string{
	"storage-zone":   "storage_zone",
	"access-key":     "access_key",
	"secret-key":     "secret_key",
	"region":         "region",
	"directory":      "directory",
	"folder":         "folder",
	"backend":        "backend",
	"endpoint":       "endpoint",
	"use-path-style": "use_path_style",
	"concurrency":    "concurrency",
	"max-retries":    "max_retries",
	"ignore-file":    "ignore_file",
	"hash-cache":     "hash_cache",
	"data-dir":       "data_dir",
}

// positional arguments in the order ZONE KEY REGION DIR
var positionalKeys = []string{"storage_zone", "access_key", "region", "directory"}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bunnysync [ZONE KEY REGION DIR]",
		Short:   "Mirror a local directory into a BunnyCDN storage zone",
		Version: version.Detailed(),
		Args:    cobra.MaximumNArgs(len(positionalKeys)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, errors from here on are not usage errors
			cmd.SilenceUsage = true

			ws, err := workspace.NewWorkspace(cfg.DataDir, cfg.Directory)
			if err != nil {
				return err
			}
			if err := ws.Setup(); err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			closeLog, err := setupLogger(ws.LogFilePath(), cmd.OutOrStdout(), verbose)
			if err != nil {
				return err
			}
			defer closeLog()

			slog.Info("bunnysync", "version", version.Short(), "config", cfg.String())

			watch, _ := cmd.Flags().GetBool("watch")
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return runSync(cmd.Context(), cfg, ws, runOptions{
				watch:    watch,
				debounce: debounce,
				out:      cmd.OutOrStdout(),
			})
		},
	}

	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("storage-zone", "z", "", "Storage zone name")
	cmd.PersistentFlags().StringP("access-key", "k", "", "Storage zone access key")
	cmd.PersistentFlags().StringP("region", "r", "", "Storage region (empty or \"de\" for Falkenstein)")
	cmd.PersistentFlags().StringP("directory", "d", "", "Local directory to sync")
	cmd.PersistentFlags().StringP("folder", "f", "", "Destination folder inside the storage zone")
	cmd.PersistentFlags().StringP("backend", "b", string(blob.BackendBunny), "Storage backend (bunny, s3, minio, fs)")
	cmd.PersistentFlags().IntP("concurrency", "j", sync.DefaultConcurrency, "Uploads and deletes in flight")
	cmd.PersistentFlags().String("secret-key", "", "Secret key for the s3 and minio backends")
	cmd.PersistentFlags().String("endpoint", "", "Storage endpoint override (fs backend: root directory)")
	cmd.PersistentFlags().Bool("use-path-style", false, "Use path style bucket addressing")
	cmd.PersistentFlags().Int("max-retries", blob.DefaultMaxRetries, "Retries per storage request")
	cmd.PersistentFlags().String("ignore-file", "", "File with gitignore rules for paths to skip")
	cmd.PersistentFlags().Bool("hash-cache", false, "Reuse fingerprints of files whose size and mtime are unchanged")
	cmd.PersistentFlags().String("data-dir", workspace.DefaultDataDir, "Directory for logs, caches and locks")
	cmd.Flags().BoolP("watch", "w", false, "Keep running and sync again whenever the directory changes")
	cmd.Flags().Duration("debounce", sync.DefaultWatchDebounce, "Quiet period before a change triggers a sync in watch mode")
	cmd.Flags().BoolP("verbose", "v", false, "Print debug logs")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (json or yaml)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func main() {
	slog.SetDefault(slog.New(newStdoutHandler(os.Stdout, false)))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig merges defaults, config file, .env, environment, flags and
// positional arguments, in increasing order of precedence.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	v := viper.New()

	for key, value := range config.Defaults() {
		v.SetDefault(key, value)
	}

	// config path
	configPath := resolveConfigPath(cmd)
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".bunnysync"))
		v.AddConfigPath(filepath.Join(home, ".config", "bunnysync"))
		v.SetConfigName(config.ConfigFileName)
	}

	configRead := true
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
		configRead = false
	}

	// .env never overrides variables already set in the environment
	if utils.FileExists(dotEnvFile) {
		if err := godotenv.Load(dotEnvFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotEnvFile, err)
		}
	}

	// Bind flags to viper
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flag(flag)); err != nil {
			return nil, err
		}
	}

	// Set up environment variables
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	for i, arg := range args {
		v.Set(positionalKeys[i], arg)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if configRead {
		cfg.Path = v.ConfigFileUsed()
	}
	return &cfg, nil
}

// resolveConfigPath honors, in order, the --config flag and BUNNYSYNC_CONFIG_PATH.
// An empty result means the default locations are searched.
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}
	return os.Getenv(config.EnvPrefix + "_CONFIG_PATH")
}
