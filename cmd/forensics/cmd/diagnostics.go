package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shubham/forensics/internal/diagnostics"
	"github.com/shubham/forensics/internal/manifest"
	"github.com/shubham/forensics/internal/orchestrate"
	"github.com/shubham/forensics/internal/record"
)

func defineDiagnosticsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "diagnostics <device>",
		Short:        "Run a surface scan, SMART collection, and cluster sample against a device",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runDiagnostics,
	}

	cmd.Flags().String("output", "", "output directory for health_report.json and cluster_map.json")

	return cmd
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	target := args[0]
	outputDir, _ := cmd.Flags().GetString("output")

	orch := orchestrate.New()

	healthJob, err := orch.StartScan(target, record.ScanOptions{Strategy: record.StrategySurfaceHealth})
	if err != nil {
		return fmt.Errorf("starting health scan: %w", err)
	}
	if _, err := orch.Results(healthJob); err != nil {
		return fmt.Errorf("running health scan: %w", err)
	}
	health, err := orch.HealthReport(healthJob)
	if err != nil {
		return fmt.Errorf("running health scan: %w", err)
	}

	clusterJob, err := orch.StartScan(target, record.ScanOptions{Strategy: record.StrategyClusterSample})
	if err != nil {
		return fmt.Errorf("starting cluster sample: %w", err)
	}
	if _, err := orch.Results(clusterJob); err != nil {
		return fmt.Errorf("sampling clusters: %w", err)
	}
	samples, err := orch.ClusterSamples(clusterJob)
	if err != nil {
		return fmt.Errorf("sampling clusters: %w", err)
	}

	fmt.Printf("health score: %d/100 (%s)\n", health.Score, diagnostics.BandFor(health.Score))
	fmt.Printf("sectors checked: %d, bad sectors: %d\n", health.SurfaceScan.SectorsChecked, len(health.SurfaceScan.BadSectors))
	if health.Smart.Available {
		fmt.Printf("SMART: passed=%t reallocated=%d pending=%d power_on_hours=%d\n",
			health.Smart.Passed, health.Smart.ReallocatedSectors, health.Smart.PendingSectors, health.Smart.PowerOnHours)
	} else {
		fmt.Println("SMART: unavailable")
	}

	if outputDir == "" {
		return nil
	}

	hrPath, err := manifest.WriteHealthReport(outputDir, manifest.BuildHealthReport(target, health))
	if err != nil {
		return fmt.Errorf("writing health report: %w", err)
	}
	cmPath, err := manifest.WriteClusterMap(outputDir, manifest.BuildClusterMap(samples))
	if err != nil {
		return fmt.Errorf("writing cluster map: %w", err)
	}

	fmt.Printf("health report written to %s\n", hrPath)
	fmt.Printf("cluster map written to %s\n", cmPath)
	return nil
}
