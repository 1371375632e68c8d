package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-prime-paths/internal/config"
	"github.com/l3aro/go-prime-paths/internal/scanner"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gpp configuration interactively",
	Long: `Guides you through setting up gpp configuration step by step.
Creates a config file with output, path extraction and cache settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Output ===
	outputDir := cfg.OutputDir
	contract := cfg.Contract
	languages := cfg.Languages
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Output location").
				Description("Directory or URL (file://, mem://) for CFG artifacts").
				Placeholder(cfg.OutputDir).
				Value(&outputDir),
			huh.NewMultiSelect[string]().
				Title("Languages to scan").
				Options(languageOptions()...).
				Value(&languages),
			huh.NewConfirm().
				Title("Write contracted graphs?").
				Description("Merges straight-line chains for presentation").
				Value(&contract),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Prime paths and cache ===
	maxVisits := strconv.Itoa(cfg.MaxVisits)
	workers := strconv.Itoa(cfg.Workers)
	cacheSize := strconv.Itoa(cfg.CacheSize)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Maximum visits per node").
				Description("How often a node may occur in one prime path").
				Value(&maxVisits).
				Validate(positiveInt),
			huh.NewInput().
				Title("Workers").
				Description("Concurrent units and seeds, 0 for one per CPU").
				Value(&workers).
				Validate(nonNegativeInt),
			huh.NewInput().
				Title("CFG cache size").
				Description("Translation units kept in the cache, 0 disables it").
				Value(&cacheSize).
				Validate(nonNegativeInt),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Save Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.gpp/config.yaml)", "global"),
					huh.NewOption("Project (./.gpp/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	path := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		path = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(path); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", path)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	cfg.Contract = contract
	cfg.Languages = languages
	cfg.MaxVisits, _ = strconv.Atoi(maxVisits)
	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.CacheSize, _ = strconv.Atoi(cacheSize)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", path)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Printf("Languages: %v\n", cfg.Languages)
	fmt.Printf("Contract: %t\n", cfg.Contract)
	fmt.Printf("Max visits: %d\n", cfg.MaxVisits)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Cache size: %d\n", cfg.CacheSize)
	fmt.Println("================================")

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", path)
	return nil
}

func languageOptions() []huh.Option[string] {
	var opts []huh.Option[string]
	for _, lang := range scanner.SupportedLanguages() {
		opts = append(opts, huh.NewOption(lang, lang).Selected(true))
	}
	return opts
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of at least 1")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of at least 0")
	}
	return nil
}
