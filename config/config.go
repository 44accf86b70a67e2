package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apiscope/constants/lipgloss"
)

// Config is the structure of the configuration file.
type Config struct {
	Version   string          `mapstructure:"version"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

// WorkspaceConfig controls staging directories and their reclamation.
type WorkspaceConfig struct {
	Root           string `mapstructure:"root"`
	RetentionHours int    `mapstructure:"retention_hours"`
	SweepSchedule  string `mapstructure:"sweep_schedule"`
}

// LimitsConfig holds the classification intake ceilings.
type LimitsConfig struct {
	MaxFiles      int   `mapstructure:"max_files"`
	MaxFileBytes  int64 `mapstructure:"max_file_bytes"`
	MaxTotalBytes int64 `mapstructure:"max_total_bytes"`
}

// DefaultConfig values.
var DefaultConfig = Config{
	Version: "0.3.0",
	Workspace: WorkspaceConfig{
		Root:           filepath.Join(os.TempDir(), "apiscope-workspaces"),
		RetentionHours: 24,
		SweepSchedule:  "@hourly",
	},
	Limits: LimitsConfig{
		MaxFiles:      20000,
		MaxFileBytes:  100 * 1024,
		MaxTotalBytes: 256 * 1024 * 1024,
	},
}

// Retention converts the configured hours to a duration.
func (w WorkspaceConfig) Retention() time.Duration {
	return time.Duration(w.RetentionHours) * time.Hour
}

// cfgFile holds the path to the configuration file (set via CLI).
var cfgFile string

type configCacheEntry struct {
	config  *Config
	modTime time.Time
}

var (
	configCache = make(map[string]*configCacheEntry)
	cacheMutex  sync.RWMutex
)

// LoadConfigs initializes the configuration from file, flags, and
// environment variables, and returns the final config.
func LoadConfigs(rootCmd *cobra.Command, cwd string) *Config {
	var config *Config

	setDefaults()
	viper.AutomaticEnv()
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error reading config file: %v", err)))
			os.Exit(1)
		}
	} else {
		viper.SetConfigName("apiscope-config")
		viper.AddConfigPath(cwd)

		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			viper.SetConfigType("json")
			_ = viper.ReadInConfig()
		}
	}

	bindFlags(rootCmd)

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Unable to decode into struct: %v", err)))
		os.Exit(1)
	}
	return config
}

// LoadConfigWithCache loads configuration, reusing the cached result
// while the backing file is unmodified.
func LoadConfigWithCache(rootCmd *cobra.Command, cwd string) *Config {
	configFilePath := cfgFile
	if configFilePath == "" {
		for _, name := range []string{"apiscope-config.yaml", "apiscope-config.yml", "apiscope-config.json"} {
			candidate := filepath.Join(cwd, name)
			if _, err := os.Stat(candidate); err == nil {
				configFilePath = candidate
				break
			}
		}
	}
	if configFilePath == "" {
		return LoadConfigs(rootCmd, cwd)
	}

	fileInfo, err := os.Stat(configFilePath)
	if err != nil {
		return LoadConfigs(rootCmd, cwd)
	}

	cacheMutex.RLock()
	if cached, exists := configCache[configFilePath]; exists && fileInfo.ModTime().Equal(cached.modTime) {
		cacheMutex.RUnlock()
		return cached.config
	}
	cacheMutex.RUnlock()

	config := LoadConfigs(rootCmd, cwd)

	cacheMutex.Lock()
	configCache[configFilePath] = &configCacheEntry{config: config, modTime: fileInfo.ModTime()}
	cacheMutex.Unlock()
	return config
}

// ClearConfigCache drops all cached configuration files.
func ClearConfigCache() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	configCache = make(map[string]*configCacheEntry)
}

func setDefaults() {
	viper.SetDefault("version", DefaultConfig.Version)
	viper.SetDefault("workspace.root", DefaultConfig.Workspace.Root)
	viper.SetDefault("workspace.retention_hours", DefaultConfig.Workspace.RetentionHours)
	viper.SetDefault("workspace.sweep_schedule", DefaultConfig.Workspace.SweepSchedule)
	viper.SetDefault("limits.max_files", DefaultConfig.Limits.MaxFiles)
	viper.SetDefault("limits.max_file_bytes", DefaultConfig.Limits.MaxFileBytes)
	viper.SetDefault("limits.max_total_bytes", DefaultConfig.Limits.MaxTotalBytes)
}

func bindEnv() {
	_ = viper.BindEnv("workspace.root", "APISCOPE_WORKSPACE_ROOT")
	_ = viper.BindEnv("workspace.retention_hours", "APISCOPE_RETENTION_HOURS")
	_ = viper.BindEnv("workspace.sweep_schedule", "APISCOPE_SWEEP_SCHEDULE")
	_ = viper.BindEnv("limits.max_files", "APISCOPE_MAX_FILES")
	_ = viper.BindEnv("limits.max_file_bytes", "APISCOPE_MAX_FILE_BYTES")
	_ = viper.BindEnv("limits.max_total_bytes", "APISCOPE_MAX_TOTAL_BYTES")
}

func bindFlags(rootCmd *cobra.Command) {
	_ = viper.BindPFlag("workspace.root", rootCmd.PersistentFlags().Lookup("workspace_root"))
	_ = viper.BindPFlag("workspace.retention_hours", rootCmd.PersistentFlags().Lookup("retention_hours"))
	_ = viper.BindPFlag("workspace.sweep_schedule", rootCmd.PersistentFlags().Lookup("sweep_schedule"))
	_ = viper.BindPFlag("limits.max_files", rootCmd.PersistentFlags().Lookup("max_files"))
	_ = viper.BindPFlag("limits.max_file_bytes", rootCmd.PersistentFlags().Lookup("max_file_bytes"))
	_ = viper.BindPFlag("limits.max_total_bytes", rootCmd.PersistentFlags().Lookup("max_total_bytes"))
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().String("workspace_root", DefaultConfig.Workspace.Root, "Directory under which analysis workspaces are staged.")
	rootCmd.PersistentFlags().Int("retention_hours", DefaultConfig.Workspace.RetentionHours, "Hours an idle workspace is retained before reclamation.")
	rootCmd.PersistentFlags().String("sweep_schedule", DefaultConfig.Workspace.SweepSchedule, "Cron schedule for workspace reclamation (e.g., '@hourly').")
	rootCmd.PersistentFlags().Int("max_files", DefaultConfig.Limits.MaxFiles, "Maximum number of files admitted per analysis.")
	rootCmd.PersistentFlags().Int64("max_file_bytes", DefaultConfig.Limits.MaxFileBytes, "Maximum size of a single file admitted for scanning.")
	rootCmd.PersistentFlags().Int64("max_total_bytes", DefaultConfig.Limits.MaxTotalBytes, "Maximum total bytes admitted per analysis.")

	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}
