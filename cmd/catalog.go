package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"apiscope/constants/lipgloss"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the registered protocol detectors.",
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return
		}

		var lines []string
		for _, info := range rootDependencies.Engine.Catalog() {
			lines = append(lines, fmt.Sprintf("%-10s %s\n           %s", info.ID, info.Name, info.Description))
		}
		fmt.Println(lipgloss.BoxStyle.Render(strings.Join(lines, "\n")))
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
