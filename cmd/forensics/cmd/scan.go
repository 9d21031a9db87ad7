package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shubham/forensics/internal/extract"
	"github.com/shubham/forensics/internal/manifest"
	"github.com/shubham/forensics/internal/orchestrate"
	"github.com/shubham/forensics/internal/record"
)

func defineScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scan <device>",
		Short:        "Scan a device or image for recoverable files",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runScan,
	}

	cmd.Flags().String("strategy", "metadata", "scan strategy: metadata or carving")
	cmd.Flags().String("preset", string(record.PresetDeep), "carving preset: quick, deep, selective")
	cmd.Flags().StringSlice("file-types", nil, "file categories to restrict carving to (images,documents,videos,audio,archives,databases)")
	cmd.Flags().String("output", "", "output directory for the manifest artifact")
	cmd.Flags().Bool("write", false, "write carved files to --output instead of indexing only")
	cmd.Flags().Bool("follow-fat-chain", false, "follow the FAT cluster chain for fragmented files")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	strategyFlag, _ := cmd.Flags().GetString("strategy")
	presetFlag, _ := cmd.Flags().GetString("preset")
	fileTypeFlags, _ := cmd.Flags().GetStringSlice("file-types")
	outputDir, _ := cmd.Flags().GetString("output")
	write, _ := cmd.Flags().GetBool("write")
	followChain, _ := cmd.Flags().GetBool("follow-fat-chain")

	opts := record.ScanOptions{
		Strategy:       record.Strategy(strategyFlag),
		CarvingPreset:  record.CarvingPreset(presetFlag),
		FileTypes:      parseCategories(fileTypeFlags),
		OutputDir:      outputDir,
		FollowFATChain: followChain,
	}
	if write {
		opts.CarvingMode = record.CarvingWrite
	} else {
		opts.CarvingMode = record.CarvingIndexOnly
	}

	orch := orchestrate.New()
	jobID, err := orch.StartScan(target, opts)
	if err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}

	progress, err := orch.Subscribe(jobID)
	if err == nil {
		go func() {
			for ev := range progress {
				fmt.Printf("\r[%s] %.1f%% files_found=%d", ev.Phase, ev.ProgressPercent, ev.FilesFound)
			}
		}()
	}

	result, err := orch.Results(jobID)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("running scan: %w", err)
	}

	fmt.Printf("scan %s: %d file(s) found (%d partial) in %s\n",
		result.Status, result.TotalFiles, result.PartialFiles, result.Duration.Round(time.Millisecond))

	if write && outputDir != "" {
		ext := extract.New(outputDir, record.ScanOptions{CreateSubdirectories: true, ValidateHashes: true, FollowFATChain: followChain})
		defer ext.Close()

		outcomes, extractErr := ext.ExtractAll(result.Records, func(done, total int) {
			fmt.Printf("\rrecovering %d/%d", done, total)
		})
		fmt.Println()

		recovered := 0
		records := make([]record.FileRecord, len(outcomes))
		for i, o := range outcomes {
			records[i] = o.Record
			if o.Failure == nil {
				recovered++
			}
		}
		result.Records = records
		fmt.Printf("wrote %d/%d file(s) to %s\n", recovered, len(outcomes), outputDir)
		if extractErr != nil && err == nil {
			err = extractErr
		}
	}

	if outputDir != "" {
		m := manifest.BuildRecoveryManifest(result, target, write)
		path, mErr := manifest.WriteRecoveryManifest(outputDir, m)
		if mErr != nil {
			return fmt.Errorf("writing manifest: %w", mErr)
		}
		fmt.Printf("manifest written to %s\n", path)
	}

	if err != nil {
		return err
	}
	return result.Err
}

func parseCategories(flags []string) []record.FileCategory {
	if len(flags) == 0 {
		return nil
	}
	cats := make([]record.FileCategory, 0, len(flags))
	for _, f := range flags {
		cats = append(cats, record.FileCategory(strings.ToLower(strings.TrimSpace(f))))
	}
	return cats
}
