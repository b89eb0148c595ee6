package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/pathwatch/internal/seed"
	"github.com/user/pathwatch/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <seed-file>",
	Short: "Import targets and alert rules from a YAML file",
	Long: `Import targets and alert rules from a YAML seed file, for
provisioning a monitor without driving the API by hand.

Example seed file:

  targets:
    - host: example.net
      label: edge
      trace_interval_s: 5
      alerts:
        - metric: packet_loss_pct
          operator: ">"
          threshold: 20
          duration_samples: 3
          action: log
`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := seed.Import(context.Background(), f, cfg.ProbeDefaults(),
		storage.NewTargetStorage(db), storage.NewAlertStorage(db))
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d targets and %d alert rules\n", res.Targets, res.Rules)
	if daemonRunning() {
		fmt.Println("Note: restart the daemon (or resume targets via the API) to schedule the new targets")
	}
	return nil
}
