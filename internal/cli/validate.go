package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/harvester/internal/control"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Build every configured pipeline and report schema errors",
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	logger := slog.Default()
	registry, err := control.NewRegistry(*cfg, control.NewClassifier(logger), logger)
	if err != nil {
		slog.Error("Pipeline configuration is invalid", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PIPELINE\tSTART\tNODES")
	for _, name := range registry.Types() {
		engine, _ := registry.Engine(name)
		schema := engine.Schema()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", name, schema.Start, len(schema.Nodes))
	}
	_ = w.Flush()
}
