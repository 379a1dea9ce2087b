package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/areascope/internal/records"
)

var (
	fetchWorkflow        string
	fetchFolders         []string
	fetchPolygons        []string
	fetchHeadOfHousehold bool
	fetchOut             string
	fetchFormat          string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <file>",
	Short: "Fetch business or consumer records for polygons in an area file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	wf, err := records.ParseWorkflow(fetchWorkflow)
	if err != nil {
		return err
	}
	if wf == records.WorkflowInsights {
		return eris.New("use the insights command for the insights workflow")
	}

	doc, err := parseAreaFile(args[0])
	if err != nil {
		return err
	}
	res, err := runWorkflow(cmd.Context(), doc, wf, fetchFolders, fetchPolygons, fetchHeadOfHousehold)
	if err != nil {
		return err
	}

	reportScopeErrors(os.Stderr, res)
	if res.State == records.StateFailed {
		return eris.New("all polygon fetches failed")
	}

	out, err := writeResultFile(fetchOut, "records", doc, res, fetchFormat)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d records from %d/%d polygons to %s\n",
		len(res.Records), res.Succeeded(), res.Scopes, out)
	return nil
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchWorkflow, "workflow", "w", "business", "workflow to run (business or consumer)")
	fetchCmd.Flags().StringSliceVarP(&fetchFolders, "folders", "f", nil, "folder names to include (default all)")
	fetchCmd.Flags().StringSliceVarP(&fetchPolygons, "polygons", "p", nil, "polygon names to include (default all)")
	fetchCmd.Flags().BoolVar(&fetchHeadOfHousehold, "head-of-household", false, "restrict consumer records to heads of household")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output file (default records.<format>)")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", "csv", "output format (csv, xlsx, or kml)")
	rootCmd.AddCommand(fetchCmd)
}
