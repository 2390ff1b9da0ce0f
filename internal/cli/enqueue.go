package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/processing/worker"
)

var (
	enqueueOrigin string
	enqueueID     string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [event_type] [payload_json]",
	Short: "Record an event and push it onto the work queue",
	Args:  cobra.ExactArgs(2),
	Run:   runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueOrigin, "origin", "harvester-cli", "origin service stamped on the message")
	enqueueCmd.Flags().StringVar(&enqueueID, "id", "", "event id (generated when empty)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var payload map[string]any
	if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
		slog.Error("Payload must be a JSON object", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	backends, err := control.OpenBackends(ctx, *cfg, enqueueOrigin)
	if err != nil {
		slog.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = backends.Close()
	}()

	producer := worker.NewProducer(backends.Queue, backends.Documents)
	id, err := producer.Submit(ctx, domain.Event{
		ID:       enqueueID,
		Type:     args[0],
		Payload:  payload,
		Metadata: map[string]any{domain.MetaOriginService: enqueueOrigin},
	})
	if err != nil {
		slog.Error("Failed to enqueue event", "error", err)
		os.Exit(1)
	}

	fmt.Println(id)
}
