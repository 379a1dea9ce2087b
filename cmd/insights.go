package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/areascope/internal/records"
)

var (
	insightsFolders  []string
	insightsPolygons []string
	insightsOut      string
	insightsFormat   string
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Fetch demographic insights and affluence scores for polygons in an area file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsights,
}

func runInsights(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	doc, err := parseAreaFile(args[0])
	if err != nil {
		return err
	}
	res, err := runWorkflow(cmd.Context(), doc, records.WorkflowInsights, insightsFolders, insightsPolygons, false)
	if err != nil {
		return err
	}

	reportScopeErrors(os.Stderr, res)
	if res.State == records.StateFailed {
		return eris.New("all polygon fetches failed")
	}

	for _, s := range res.Summaries {
		fmt.Printf("%s / %s: affluence %.2f (%d households, %d businesses)\n",
			s.Folder, s.Polygon, s.AffluenceScore, s.HouseholdCount, s.BusinessCount)
	}

	out, err := writeResultFile(insightsOut, "insights", doc, res, insightsFormat)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d summaries to %s\n", len(res.Summaries), out)
	return nil
}

func init() {
	insightsCmd.Flags().StringSliceVarP(&insightsFolders, "folders", "f", nil, "folder names to include (default all)")
	insightsCmd.Flags().StringSliceVarP(&insightsPolygons, "polygons", "p", nil, "polygon names to include (default all)")
	insightsCmd.Flags().StringVarP(&insightsOut, "out", "o", "", "output file (default insights.<format>)")
	insightsCmd.Flags().StringVar(&insightsFormat, "format", "csv", "output format (csv, xlsx, or kml)")
	rootCmd.AddCommand(insightsCmd)
}
