package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shubham/forensics/internal/signature"
)

func defineFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "formats",
		Short:        "List every file format the signature registry recognizes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runFormats,
	}
}

func runFormats(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXTENSION\tHEADER\tIMPORTANT\tFOOTER")

	for _, sig := range signature.Registry.All() {
		fmt.Fprintf(w, "%s\t%s\t% x\t%t\t%t\n", sig.ID, sig.Extension, sig.Header, sig.Important, sig.HasFooter())
	}
	return w.Flush()
}
