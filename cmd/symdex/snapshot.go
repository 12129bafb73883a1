package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/symdex/internal/index"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write and convert JSON symbol snapshots",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export [out.json]",
	Short: "Write the indexed classpath as an IndexData snapshot",
	Long:  "Indexes the configured classpath (sources are not read) and writes it as an IndexData snapshot to the file or stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshotExport,
}

var snapshotConvertCmd = &cobra.Command{
	Use:   "convert <in.json> [out.json]",
	Short: "Convert a snapshot of either shape into IndexData",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSnapshotConvert,
}

func init() {
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotConvertCmd)
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("snapshot export", err)
	}
	s, err := openSession(cfg)
	if err != nil {
		return outputError("snapshot export", err)
	}
	defer s.Close()

	if _, _, err := loadProject(context.Background(), s, cfg, nil); err != nil {
		return outputError("snapshot export", err)
	}
	return withOutput(args, 0, s.ExportClasspath)
}

func runSnapshotConvert(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return outputError("snapshot convert", fmt.Errorf("reading snapshot: %w", err))
	}
	shape, err := index.DetectShape(data)
	if err != nil {
		return outputError("snapshot convert", err)
	}
	idx, err := index.LoadStdlibBytes(data)
	if err != nil {
		return outputError("snapshot convert", err)
	}
	fmt.Fprintf(os.Stderr, "Converted %s snapshot: %d symbols\n", shape, idx.Size())
	return withOutput(args, 1, func(w io.Writer) error {
		return index.WriteSnapshot(w, idx.ToIndexData())
	})
}

// withOutput runs write against args[i] when given, else stdout.
func withOutput(args []string, i int, write func(io.Writer) error) error {
	if len(args) <= i {
		return write(os.Stdout)
	}
	f, err := os.Create(args[i])
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[i], err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
