package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"apiscope/constants/lipgloss"
	"apiscope/detector"
	"apiscope/detector/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a source tree and report its API surface.",
	Long: `The 'scan' subcommand walks a source tree, classifies its files and runs
every protocol detector over them. The resulting report lists each API
definition with its source location, plus per-protocol statistics and
any non-fatal errors collected along the way.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		if rootDependencies == nil {
			return
		}
		handleScanCommand(rootDependencies, cmd, args)
	},
}

func init() {
	scanCmd.Flags().String("project", "", "Project name for the report (defaults to the directory name)")
	scanCmd.Flags().Bool("json", false, "Emit the raw JSON report instead of the rendered summary")
	rootCmd.AddCommand(scanCmd)
}

func handleScanCommand(rootDependencies *RootDependencies, cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	target := rootDependencies.Cwd
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}

	projectName, _ := cmd.Flags().GetString("project")
	if projectName == "" {
		projectName = filepath.Base(abs)
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").WithDelay(100).WithRemoveWhenDone(true)
	spinnerScan, _ := spinner.Start("Scanning source tree...")

	snapshot, err := detector.NewSnapshotFromDir(abs)
	if err != nil {
		spinnerScan.Stop()
		fmt.Print("\r")
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}

	result := rootDependencies.Engine.Analyze(ctx, snapshot, projectName, models.SourceDescriptor{
		Kind: models.SourceZip,
		Info: map[string]any{"path": abs},
	})

	spinnerScan.Stop()
	fmt.Print("\r")

	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			return
		}
		fmt.Println(string(out))
		return
	}
	renderReport(result)
}

func renderReport(result *models.AnalysisResult) {
	header := fmt.Sprintf("%s\nanalyzed at %s", result.ProjectName, result.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println(lipgloss.BoxStyle.Render(header))

	var counts []string
	for _, t := range models.AllTypes() {
		counts = append(counts, fmt.Sprintf("%s: %d", t, result.Stats[string(t)]))
	}
	counts = append(counts, fmt.Sprintf("total: %d", result.Stats[models.StatsKeyTotal]))
	fmt.Println(lipgloss.Info.Render(strings.Join(counts, "  ")))

	for _, def := range result.APIs {
		fmt.Printf("  %s %s (%s:%d)\n",
			lipgloss.Green.Render(fmt.Sprintf("[%s]", def.Type)),
			def.Name, def.SourceFile, def.SourceLine)
	}

	if len(result.Errors) == 0 {
		return
	}
	fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("\n%d error(s):", len(result.Errors))))
	for _, e := range result.Errors {
		line := fmt.Sprintf("  [%s] %s: %s", e.Category, e.Reference, e.Message)
		if e.Category == models.ErrIngestion {
			fmt.Println(lipgloss.Red.Render(line))
		} else {
			fmt.Println(lipgloss.Yellow.Render(line))
		}
	}
}
