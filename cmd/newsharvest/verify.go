package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/storage"
)

var previewRows int

// verifyCmd creates the "verify" subcommand.
func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file.csv>",
		Short: "Audit the links of a CSV output file",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	cmd.Flags().IntVarP(&previewRows, "preview", "p", 20, "number of leading rows to show")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	opts := storage.DefaultAuditOptions(cfg)
	opts.Preview = previewRows
	rep, err := storage.Audit(f, opts)
	if err != nil {
		return fmt.Errorf("audit %s: %w", args[0], err)
	}

	printAudit(cmd.OutOrStdout(), rep, opts)
	return nil
}

func printAudit(w io.Writer, rep *storage.AuditReport, opts storage.AuditOptions) {
	fmt.Fprintf(w, "%d rows\n\n", rep.Rows)

	for _, row := range rep.Preview {
		mark := "✓"
		if !strings.HasPrefix(row.Link, "http") {
			mark = "✗"
		}
		fmt.Fprintf(w, "%3d. [%s] %s\n", row.Line, row.Source, runewidth.Truncate(row.Title, 60, "..."))
		fmt.Fprintf(w, "     %s %s\n", mark, runewidth.Truncate(row.Link, 120, "..."))
	}

	fmt.Fprintf(w, "\nmalformed links: %d\n", len(rep.BadLinks))
	for _, row := range rep.BadLinks {
		fmt.Fprintf(w, "  line %d: %q\n", row.Line, row.Link)
	}

	if opts.SocialSource != "" {
		fmt.Fprintf(w, "\n%s: %d rows\n", opts.SocialSource, rep.SocialRows)
		fmt.Fprintf(w, "  direct article links (%s): %d\n", opts.DirectHost, rep.SocialDirect)
		fmt.Fprintf(w, "  proxy redirect links (%s): %d\n", opts.RedirectHost, rep.SocialRedirects)
		fmt.Fprintf(w, "  other: %d\n", rep.SocialOther)
	}
}
