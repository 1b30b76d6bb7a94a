package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxadm/analyzer/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent analyses from the audit store",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of analyses to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Database.URL == "" {
		slog.Error("No database configured, status requires the audit store")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	recs, err := postgres.NewAnalysisRepo(db).ListRecent(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to query analyses", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tCATEGORY\tPRIORITY\tRISK\tQUALITY\tSOURCE\tANALYZED")

	for _, rec := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s (%d)\t%d\t%s\t%s\n",
			rec.DocumentID,
			rec.Result.Category,
			rec.Result.Priority,
			rec.Result.RiskLevel,
			rec.Result.RiskScore,
			rec.Result.QualityScore,
			rec.Result.Source,
			rec.Result.AnalyzedAt.Format("2006-01-02 15:04:05"),
		)
	}
	_ = w.Flush()
}
