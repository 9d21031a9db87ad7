package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shubham/forensics/internal/deviceinfo"
)

func defineDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "devices",
		Short:        "List block storage devices visible to this host",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runDevices,
	}
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := deviceinfo.List()
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tSIZE\tFILESYSTEM\tREMOVABLE")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", d.Path, d.Name, d.SizeHuman, d.Filesystem, d.Removable)
	}
	return w.Flush()
}
