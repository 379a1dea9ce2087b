package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/areascope/internal/store"
)

var (
	uploadsLimit  int
	uploadsOffset int
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List stored area uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		ups, err := st.ListUploads(cmd.Context(), uploadsLimit, uploadsOffset)
		if err != nil {
			return err
		}
		if len(ups) == 0 {
			fmt.Println("no uploads stored")
			return nil
		}
		for _, up := range ups {
			fmt.Printf("%s  %-12s %-30s %3d polygons  %s\n",
				up.CreatedAt.Format("2006-01-02 15:04"), up.Format, up.Filename, up.PolygonCount, up.ID)
		}
		return nil
	},
}

var uploadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteUpload(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	uploadsCmd.Flags().IntVar(&uploadsLimit, "limit", 20, "maximum uploads to list")
	uploadsCmd.Flags().IntVar(&uploadsOffset, "offset", 0, "uploads to skip")
	uploadsCmd.AddCommand(uploadsDeleteCmd)
	rootCmd.AddCommand(uploadsCmd)
}
