package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	"github.com/spf13/cobra"
)

func newGenCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write the mock road network and report fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			networkPath := filepath.Join(outDir, "network.geojson")
			if err := writeFile(networkPath, func(f *os.File) error {
				return roadnet.EncodeGeoJSON(f, mockNetwork())
			}); err != nil {
				return err
			}

			reports := mockReports()
			reportsPath := filepath.Join(outDir, "reports.json")
			if err := writeFile(reportsPath, func(f *os.File) error {
				enc := json.NewEncoder(f)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d segments)\n", networkPath, len(mockNetwork()))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d reports)\n", reportsPath, len(reports))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "data/mock", "directory to write fixtures to")
	return cmd
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
