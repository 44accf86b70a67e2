package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"apiscope/config"
	"apiscope/constants/lipgloss"
	"apiscope/detector"
	"apiscope/logging"
	"apiscope/workspace"
)

// RootDependencies holds the dependencies shared by all subcommands.
type RootDependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Engine     *detector.Engine
	Workspaces *workspace.Manager
	Cwd        string
}

var rootCmd = &cobra.Command{
	Use:   "apiscope",
	Short: "apiscope inventories the API surface of a codebase.",
	Long: `apiscope scans a source tree and reports every API definition it can
find: REST routes, WebSocket endpoints, gRPC services, GraphQL schemas
and OpenAPI documents, together with any errors encountered on the way.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(config.DefaultConfig.Version)
			return
		}
		_ = cmd.Help()
	},
}

func handleRootCommand(cmd *cobra.Command) *RootDependencies {
	rootDependencies := &RootDependencies{}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error getting current directory: %v", err)))
		return nil
	}
	rootDependencies.Cwd = cwd

	rootDependencies.Config = config.LoadConfigWithCache(cmd.Root(), cwd)

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := logging.New(verbose)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error building logger: %v", err)))
		return nil
	}
	rootDependencies.Logger = logger

	rootDependencies.Engine = detector.New(detector.Limits{
		MaxFiles:      rootDependencies.Config.Limits.MaxFiles,
		MaxFileBytes:  rootDependencies.Config.Limits.MaxFileBytes,
		MaxTotalBytes: rootDependencies.Config.Limits.MaxTotalBytes,
	}, logger)

	manager, err := workspace.NewManager(
		rootDependencies.Config.Workspace.Root,
		rootDependencies.Config.Workspace.Retention(),
		logger,
	)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error initializing workspaces: %v", err)))
		return nil
	}
	rootDependencies.Workspaces = manager

	return rootDependencies
}

// Execute runs the root command.
func Execute() {
	config.InitFlags(rootCmd)
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging.")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}
}
