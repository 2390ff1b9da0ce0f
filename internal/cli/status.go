package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth, document counts and parked events",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	backends, err := control.OpenBackends(ctx, *cfg, "harvester-cli")
	if err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = backends.Close()
	}()

	depth, err := backends.Queue.Depth(ctx)
	if err != nil {
		slog.Error("Failed to read queue depth", "error", err)
		os.Exit(1)
	}
	counts, err := backends.Documents.CountByStatus(ctx)
	if err != nil {
		slog.Error("Failed to count documents", "error", err)
		os.Exit(1)
	}
	failed, err := backends.Failed.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to list failed events", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "QUEUE\t%d\n", depth)
	for _, s := range []domain.DocumentStatus{
		domain.DocumentStatusPending,
		domain.DocumentStatusProcessing,
		domain.DocumentStatusCompleted,
		domain.DocumentStatusFailed,
	} {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
	}
	_ = w.Flush()

	if len(failed) == 0 {
		return
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "EVENT\tTYPE\tCODE\tRETRIES\tLAST ATTEMPT\tERROR")
	for _, fe := range failed {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			fe.Event.ID, fe.Event.Type, fe.Code, fe.RetryCount,
			fe.LastAttempt.Format(time.RFC3339), fe.Error)
	}
	_ = w.Flush()
}
