package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/l3aro/go-prime-paths/pkg/primepath"
	"github.com/l3aro/go-prime-paths/pkg/store"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths <edge-list>",
	Short: "Extract prime paths from an edge list",
	Long: `Loads an edge list written by "gpp build" (a local path or a URL) and prints
its prime paths, one per line. Paths starting at an initial node are marked
[head], paths ending at a final node are marked [end].`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		maxVisits := settings.MaxVisits
		if cmd.Flags().Changed("max-visits") {
			maxVisits, _ = cmd.Flags().GetInt("max-visits")
		}
		workers := settings.Workers
		if cmd.Flags().Changed("workers") {
			workers, _ = cmd.Flags().GetInt("workers")
		}

		el, err := store.ReadEdgeList(cmd.Context(), afs.New(), args[0])
		if err != nil {
			return err
		}

		g := primepath.New(el, primepath.WithMaxVisits(maxVisits), primepath.WithWorkers(workers))
		paths, err := g.ComputePrimePaths(cmd.Context())
		if err != nil {
			return err
		}
		reports := g.Annotate(paths)
		logger.Debug("prime paths computed", "edge_list", args[0], "nodes", len(g.Nodes()), "paths", len(reports))

		complete, _ := cmd.Flags().GetBool("complete")
		if complete {
			reports = completeOnly(reports)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(reports)
		}
		for _, r := range reports {
			fmt.Println(formatReport(r))
		}
		return nil
	},
}

// completeOnly keeps the paths that run from an initial node to a final node.
func completeOnly(reports []primepath.Report) []primepath.Report {
	out := make([]primepath.Report, 0, len(reports))
	for _, r := range reports {
		if r.ReachHead && r.ReachEnd {
			out = append(out, r)
		}
	}
	return out
}

// formatReport renders a report as space separated node ids followed by its marks.
func formatReport(r primepath.Report) string {
	ids := make([]string, len(r.Path))
	for i, id := range r.Path {
		ids[i] = strconv.Itoa(id)
	}
	line := strings.Join(ids, " ")
	if r.ReachHead {
		line += " [head]"
	}
	if r.ReachEnd {
		line += " [end]"
	}
	return line
}

func init() {
	pathsCmd.Flags().Int("max-visits", primepath.MaxVisits, "Maximum occurrences of a node in one path")
	pathsCmd.Flags().Int("workers", 0, "Seeds extended concurrently (default: one per CPU)")
	pathsCmd.Flags().Bool("complete", false, "Only print paths from an initial to a final node")
	pathsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
