package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shubham/forensics/internal/extract"
	"github.com/shubham/forensics/internal/manifest"
	"github.com/shubham/forensics/internal/record"
)

func defineRecoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover <manifest_file> <output_dir>",
		Short: "Extract files indexed by a prior scan's manifest to disk",
		Long: `The 'recover' command reads a scan_index.json or recovery_manifest.json
produced by 'scan' and writes the bytes each entry describes to output_dir,
reopening the original source device as needed and verifying SHA-256 hashes
before declaring an entry recovered.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         runRecover,
	}

	cmd.Flags().Bool("skip-hash-check", false, "do not verify SHA-256 before writing")
	cmd.Flags().Bool("flat", false, "write every file directly into output_dir instead of per-extension subdirectories")

	return cmd
}

func runRecover(cmd *cobra.Command, args []string) error {
	manifestPath := args[0]
	outputDir := args[1]

	skipHash, _ := cmd.Flags().GetBool("skip-hash-check")
	flat, _ := cmd.Flags().GetBool("flat")

	records, err := manifest.LoadRecoveryManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	ext := extract.New(outputDir, record.ScanOptions{
		CreateSubdirectories: !flat,
		ValidateHashes:       !skipHash,
	})
	defer ext.Close()

	outcomes, err := ext.ExtractAll(records, func(done, total int) {
		fmt.Printf("\rrecovering %d/%d", done, total)
	})
	fmt.Println()

	var recovered, failed int
	for _, o := range outcomes {
		if o.Failure != nil {
			failed++
			fmt.Printf("FAILED  %-40s %s: %v\n", o.Record.Name, o.Failure.Kind, o.Failure.Err)
			continue
		}
		recovered++
		fmt.Printf("OK      %-40s -> %s\n", o.Record.Name, o.Written)
	}

	fmt.Printf("\nrecovered %d file(s), %d failed\n", recovered, failed)
	if err != nil {
		return err
	}
	return nil
}
