package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/pkg/cfg"
	"github.com/l3aro/go-prime-paths/pkg/walker"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Build and print the control flow graphs of a source file",
	Long: `Builds the Control Flow Graph of every function in a C or C++ file, or of a
single function with --func. Outputs blocks with their line ranges, typed edges,
and the initial and final blocks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		_, logger, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		info, err := os.Stat(filePath)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("path is a directory, expected a file: %s", filePath)
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		funcName, _ := cmd.Flags().GetString("func")
		unit, err := buildUnit(cmd.Context(), filePath, content, funcName, logger)
		if err != nil {
			if errors.Is(err, walker.ErrFunctionNotFound) {
				return fmt.Errorf("function %q not found in %s%s", funcName, filePath, suggest(cmd.Context(), filePath, content, funcName))
			}
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		contract, _ := cmd.Flags().GetBool("contract")

		if contract {
			graphs := make([]*cfg.ContractedGraph, 0, len(unit.Functions))
			for _, fn := range unit.Functions {
				graphs = append(graphs, cfg.Contract(fn))
			}
			if jsonOutput {
				return printJSON(graphs)
			}
			for _, g := range graphs {
				printContracted(g)
			}
			return nil
		}

		if jsonOutput {
			return printJSON(unit)
		}
		for _, fn := range unit.Functions {
			printFunction(fn)
		}
		return nil
	},
}

// buildUnit walks content and returns the CFGs of its functions, or only of funcName
// when it is set.
func buildUnit(ctx context.Context, path string, content []byte, funcName string, logger log.Logger) (*cfg.Unit, error) {
	w, err := walker.ForPath(path)
	if err != nil {
		return nil, err
	}
	w.SetLogger(logger)

	b := cfg.NewBuilder(path)
	b.SetLogger(logger)

	if funcName != "" {
		err = w.WalkFunction(ctx, content, funcName, b)
	} else {
		err = w.Walk(ctx, content, b)
	}
	if err != nil {
		return nil, fmt.Errorf("building CFG of %s: %w", path, err)
	}

	unit := b.Unit()
	for _, fn := range unit.Functions {
		if err := fn.Validate(); err != nil {
			return nil, err
		}
	}
	return unit, nil
}

// suggest lists the functions whose name contains name, for a not-found error.
func suggest(ctx context.Context, path string, content []byte, name string) string {
	w, err := walker.ForPath(path)
	if err != nil {
		return ""
	}
	fns, err := w.Functions(ctx, content)
	if err != nil {
		return ""
	}
	var matches []string
	lower := strings.ToLower(walker.SanitizeName(name))
	for _, fn := range fns {
		if strings.Contains(strings.ToLower(fn.Name), lower) || strings.Contains(lower, strings.ToLower(fn.Name)) {
			matches = append(matches, fn.Declarator)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	return "\nDid you mean: " + strings.Join(matches, ", ") + "?"
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printFunction prints a CFG in human-readable format.
func printFunction(fn *cfg.FunctionCFG) {
	fmt.Printf("=== CFG for function: %s (line %d) ===\n", fn.Name, fn.Line)
	fmt.Printf("Init: %v\n", fn.InitNodes)
	fmt.Printf("Final: %v\n", fn.FinalNodes)
	if unreachable := fn.Unreachable(); len(unreachable) > 0 {
		fmt.Printf("Unreachable: %v\n", unreachable)
	}

	fmt.Printf("\nBlocks (%d):\n", len(fn.Nodes))
	for _, b := range fn.Nodes {
		fmt.Printf("  %d (lines %d-%d)\n", b.ID, b.StartLine, b.EndLine)
	}

	fmt.Printf("\nEdges (%d):\n", len(fn.Edges))
	for _, e := range fn.Edges {
		fmt.Printf("  %d --%s--> %d\n", e.Source, e.Kind, e.Dest)
	}
	fmt.Println()
}

// printContracted prints a contracted graph in human-readable format.
func printContracted(g *cfg.ContractedGraph) {
	fmt.Printf("=== Contracted CFG for function: %s ===\n", g.Name)
	fmt.Printf("Init: %v\n", g.InitNodes)
	fmt.Printf("Final: %v\n", g.FinalNodes)

	fmt.Printf("\nNodes (%d):\n", len(g.Nodes))
	for _, n := range g.Nodes {
		fmt.Printf("  %d (lines %d-%d, blocks %v)\n", n.ID, n.StartLine, n.EndLine, n.Members)
	}

	fmt.Printf("\nEdges (%d):\n", len(g.Edges))
	for _, e := range g.Edges {
		fmt.Printf("  %d --%s--> %d\n", e.Source, e.Kind, e.Dest)
	}
	fmt.Println()
}

func init() {
	cfgCmd.Flags().StringP("func", "f", "", "Only build the named function")
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cfgCmd.Flags().BoolP("contract", "c", false, "Merge straight-line chains before printing")
}
