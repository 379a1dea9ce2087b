package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders <file>",
	Short: "List the folders and polygons in an area file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := parseAreaFile(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s): %d folders, %d polygons\n",
			filepath.Base(args[0]), doc.Format, len(doc.Folders), doc.PolygonCount())
		for _, f := range doc.Folders {
			fmt.Printf("  %s\n", f.Name)
			for _, p := range f.Polygons {
				fmt.Printf("    - %s\n", p.Name)
			}
		}
		for _, w := range doc.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(foldersCmd)
}
