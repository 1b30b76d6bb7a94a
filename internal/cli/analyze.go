package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxadm/analyzer/internal/control"
	"github.com/fluxadm/analyzer/internal/core/domain"
)

var asJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a single change request document",
	Long:  `Reads a change request document from a file (or stdin when no file is given) and prints the analysis verdict.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var (
		text       []byte
		documentID string
		err        error
	)
	if len(args) == 1 {
		text, err = os.ReadFile(args[0])
		documentID = args[0]
	} else {
		text, err = io.ReadAll(os.Stdin)
		documentID = "stdin"
	}
	if err != nil {
		slog.Error("Failed to read document", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(string(text)) == "" {
		slog.Error("Document is empty")
		os.Exit(1)
	}

	app, err := control.NewService(control.Config{
		Providers: cfg.Providers,
		Cache:     cfg.Cache,
		Database:  cfg.Database,
	})
	if err != nil {
		slog.Error("Failed to initialize analyzer", "error", err)
		os.Exit(1)
	}

	res := app.Analyze(context.Background(), domain.AnalysisRequest{
		DocumentID: documentID,
		Text:       string(text),
	})

	if asJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return
	}

	printResult(res)
}

func printResult(res domain.AnalysisResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "Title\t%s\n", res.Title)
	_, _ = fmt.Fprintf(w, "Category\t%s\n", res.Category)
	_, _ = fmt.Fprintf(w, "Priority\t%s\n", res.Priority)
	_, _ = fmt.Fprintf(w, "Risk\t%s (%d/9, impact %d x probability %d)\n",
		res.RiskLevel, res.RiskScore, res.ImpactScore, res.ProbabilityScore)
	_, _ = fmt.Fprintf(w, "Quality\t%d/100\n", res.QualityScore)
	_, _ = fmt.Fprintf(w, "Confidence\t%.2f\n", res.Confidence)
	_, _ = fmt.Fprintf(w, "Source\t%s\n", res.Source)
	if len(res.AffectedSystems) > 0 {
		_, _ = fmt.Fprintf(w, "Systems\t%s\n", strings.Join(res.AffectedSystems, ", "))
	}
	_ = w.Flush()

	if len(res.QualityIssues) > 0 {
		fmt.Println("\nQuality issues:")
		for _, issue := range res.QualityIssues {
			fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Type, issue.Description)
		}
	}
}
