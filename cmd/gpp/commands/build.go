package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-prime-paths/internal/config"
	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/internal/scanner"
	"github.com/l3aro/go-prime-paths/pkg/cache"
	"github.com/l3aro/go-prime-paths/pkg/cfg"
	"github.com/l3aro/go-prime-paths/pkg/edgelist"
	"github.com/l3aro/go-prime-paths/pkg/primepath"
	"github.com/l3aro/go-prime-paths/pkg/store"
)

// BuildOptions configures a build run.
type BuildOptions struct {
	Root      string
	Output    string
	Contract  bool
	Paths     bool
	UseCache  bool
	CacheFile string
	CacheSize int
	Workers   int
	MaxVisits int
	Languages []string
}

// BuildSummary represents the output of the build command
type BuildSummary struct {
	Root      string   `json:"root"`
	Output    string   `json:"output"`
	Units     int      `json:"units"`
	Functions int      `json:"functions"`
	CacheHits int      `json:"cache_hits"`
	Failed    []string `json:"failed,omitempty"`
}

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build CFG artifacts for a file or a source tree",
	Long: `Scans a C or C++ file or directory, builds the CFG of every function and writes,
per translation unit, functions.json plus an edge list (<n>.txt) and a structured
artifact (<n>.json) per function. The output location may be a local directory or
any URL the storage layer supports (file://, mem://).`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		settings, logger, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		opts := buildOptionsFrom(settings, path)
		if cmd.Flags().Changed("out") {
			opts.Output, _ = cmd.Flags().GetString("out")
		}
		if cmd.Flags().Changed("contract") {
			opts.Contract, _ = cmd.Flags().GetBool("contract")
		}
		opts.Paths, _ = cmd.Flags().GetBool("paths")
		if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
			opts.UseCache = false
		}

		spinner := log.NewProgressSpinner("Building control flow graphs...")
		spinner.Start()
		summary, err := runBuild(cmd.Context(), opts, logger)
		spinner.Stop()
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(summary)
		}

		fmt.Printf("Built %d functions in %d units (%d from cache)\n", summary.Functions, summary.Units, summary.CacheHits)
		fmt.Printf("Artifacts: %s\n", summary.Output)
		for _, f := range summary.Failed {
			fmt.Printf("Failed: %s\n", f)
		}
		return nil
	},
}

func buildOptionsFrom(settings *config.Config, root string) BuildOptions {
	return BuildOptions{
		Root:      root,
		Output:    settings.OutputDir,
		Contract:  settings.Contract,
		UseCache:  settings.CacheSize > 0,
		CacheFile: settings.CacheFile,
		CacheSize: settings.CacheSize,
		Workers:   settings.Workers,
		MaxVisits: settings.MaxVisits,
		Languages: settings.Languages,
	}
}

// runBuild scans opts.Root and writes the artifacts of every translation unit. A unit
// that fails to build is logged and reported in the summary; storage errors abort.
func runBuild(ctx context.Context, opts BuildOptions, logger log.Logger) (*BuildSummary, error) {
	if _, err := os.Stat(opts.Root); err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	scanOpts := scanner.DefaultOptions()
	if len(opts.Languages) > 0 {
		scanOpts.Languages = opts.Languages
	}
	files, err := scanner.ScanWithOptions(opts.Root, scanOpts)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", opts.Root, err)
	}

	var units *cache.LRUCache
	if opts.UseCache {
		units = cache.New(cache.Options{MaxSize: opts.CacheSize})
		if err := cache.LoadFromFile(units, opts.CacheFile); err != nil {
			logger.Warn("ignoring unreadable CFG cache", "path", opts.CacheFile, "error", err)
			units.Clear()
		}
	}

	out := store.New(opts.Output)
	out.SetLogger(logger)

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	summary := &BuildSummary{Root: opts.Root, Output: out.BaseURL()}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, file := range files {
		file := file
		eg.Go(func() error {
			unit, hit, err := loadUnit(ctx, file, units, logger)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("skipping unit", "path", file.Path, "error", err)
				mu.Lock()
				summary.Failed = append(summary.Failed, file.Path)
				mu.Unlock()
				return nil
			}

			dir := store.UnitDir(file.Path)
			if err := writeUnit(ctx, out, dir, unit, opts); err != nil {
				return err
			}
			logger.Debug("unit built", "path", file.Path, "functions", len(unit.Functions), "cached", hit)

			mu.Lock()
			summary.Units++
			summary.Functions += len(unit.Functions)
			if hit {
				summary.CacheHits++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(summary.Failed)

	if units != nil {
		if err := cache.PersistToFile(units, opts.CacheFile); err != nil {
			logger.Warn("could not save CFG cache", "path", opts.CacheFile, "error", err)
		}
	}

	logger.Info("build finished", "units", summary.Units, "functions", summary.Functions, "failed", len(summary.Failed))
	return summary, nil
}

// loadUnit returns the CFGs of file, from the cache when its content is unchanged.
func loadUnit(ctx context.Context, file scanner.FileInfo, units *cache.LRUCache, logger log.Logger) (*cfg.Unit, bool, error) {
	content, err := os.ReadFile(file.FullPath)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", file.Path, err)
	}

	var key string
	if units != nil {
		key, err = cache.Key(file.Language, content)
		if err != nil {
			return nil, false, err
		}
		if unit, ok := units.Get(key); ok {
			return unit, true, nil
		}
	}

	unit, err := buildUnit(ctx, file.Path, content, "", logger.With("unit", file.Path))
	if err != nil {
		return nil, false, err
	}
	if units != nil {
		units.Set(key, unit)
	}
	return unit, false, nil
}

// writeUnit stores the artifacts of unit and the optional contracted graphs and prime
// path reports.
func writeUnit(ctx context.Context, out *store.Store, dir string, unit *cfg.Unit, opts BuildOptions) error {
	if err := out.WriteUnit(ctx, dir, unit); err != nil {
		return err
	}

	for i, fn := range unit.Functions {
		n := strconv.Itoa(i + 1)
		if opts.Contract {
			if err := out.WriteJSON(ctx, dir, n+".contracted.json", cfg.Contract(fn)); err != nil {
				return err
			}
		}
		if opts.Paths {
			g := primepath.New(edgelist.FromCFG(fn), primepath.WithMaxVisits(opts.MaxVisits), primepath.WithWorkers(1))
			paths, err := g.ComputePrimePaths(ctx)
			if err != nil {
				return fmt.Errorf("prime paths of %s: %w", fn.Name, err)
			}
			if err := out.WriteJSON(ctx, dir, n+".paths.json", g.Annotate(paths)); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	buildCmd.Flags().StringP("out", "o", "", "Output directory or URL (default: output_dir from config)")
	buildCmd.Flags().BoolP("contract", "c", false, "Also write contracted graphs (<n>.contracted.json)")
	buildCmd.Flags().BoolP("paths", "p", false, "Also write prime path reports (<n>.paths.json)")
	buildCmd.Flags().Bool("no-cache", false, "Do not read or write the CFG cache")
	buildCmd.Flags().BoolP("json", "j", false, "Output summary as JSON")
}
