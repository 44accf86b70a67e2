package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"apiscope/constants/lipgloss"
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List staged analysis workspaces.",
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return
		}

		workspaces := rootDependencies.Workspaces.List()
		if len(workspaces) == 0 {
			fmt.Println(lipgloss.Info.Render("No staged workspaces."))
			return
		}
		for _, ws := range workspaces {
			fmt.Printf("  %s  staged %s  reclaim after %s\n",
				ws.ID,
				ws.CreatedAt.Format(time.RFC3339),
				ws.Deadline.Format(time.RFC3339))
		}
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim expired workspaces now.",
	Long: `The 'sweep' subcommand removes every workspace whose retention deadline
has passed and which no running analysis is holding. Leased workspaces
are never reclaimed.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		handleSweepCommand(force, cmd)
	},
}

func init() {
	sweepCmd.Flags().BoolP("force", "f", false, "Sweep without confirmation")
	workspacesCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(workspacesCmd)
}

func handleSweepCommand(force bool, cmd *cobra.Command) {
	rootDependencies := handleRootCommand(cmd)
	if rootDependencies == nil {
		return
	}

	if !force {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Are you sure you want to reclaim all expired workspaces? (y/N): ")
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println(lipgloss.Yellow.Render("Sweep cancelled."))
			return
		}
	}

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).WithRemoveWhenDone(true)

	spinnerInstance, _ := spinner.Start("Reclaiming expired workspaces...")
	removed, errs := rootDependencies.Workspaces.SweepOnce(time.Now())
	spinnerInstance.Stop()
	fmt.Print("\r")

	for _, err := range errs {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
	}
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("✓ Reclaimed %d workspace(s).", removed)))
}
