package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/collect"
	"github.com/kakehashi-site/kakehashi/internal/config"
	"github.com/kakehashi-site/kakehashi/internal/database"
	"github.com/kakehashi-site/kakehashi/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kakehashi",
	Short:   "Bilingual business knowledge base",
	Long:    "Kakehashi serves a filterable knowledge base of China-Japan business articles and imports new content from configured feeds.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kakehashi", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and seed data in ~/.config/kakehashi/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
		} else {
			if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Created config: %s\n", target)
		}

		dataFile := filepath.Join(config.DataDir(), "articles.json")
		if _, err := os.Stat(dataFile); err == nil {
			fmt.Printf("Data file already exists: %s\n", dataFile)
			return nil
		}
		if err := os.MkdirAll(config.DataDir(), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		if err := os.WriteFile(dataFile, catalog.SeedData, 0o644); err != nil {
			return fmt.Errorf("writing seed data: %w", err)
		}

		fmt.Printf("Created seed data: %s\n", dataFile)
		fmt.Println("Edit the config to set feeds, then run 'kakehashi serve'.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data file and engagement status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := catalog.NewStore(cfg.GetDataFile(), staleAfter(), nil)
		if err := store.Load(); err != nil {
			return err
		}

		fmt.Printf("Data file: %s\n", cfg.GetDataFile())
		fmt.Printf("Version:   %s\n\n", store.Version())

		fmt.Println("Articles by category:")
		counts := store.Counts()
		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		total := 0
		for _, id := range ids {
			fmt.Printf("  %s: %d\n", id, counts[id])
			total += counts[id]
		}
		fmt.Printf("  Total: %d\n", total)

		reg := catalog.NewRegistry()
		byDifficulty := make(map[string]int)
		for _, a := range store.All() {
			byDifficulty[reg.DifficultyID(a.Difficulty)]++
		}
		fmt.Println("\nArticles by difficulty:")
		for _, id := range []string{catalog.DifficultyBeginner, catalog.DifficultyIntermediate, catalog.DifficultyAdvanced} {
			fmt.Printf("  %s: %d\n", id, byDifficulty[id])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("\nEngagement:")
		fmt.Printf("  Tracked articles: %d\n", stats.TrackedArticles)
		fmt.Printf("  Total views: %d\n", stats.TotalViews)
		fmt.Printf("  Helpful votes: %d\n", stats.TotalHelpful)
		fmt.Println("\nImports:")
		fmt.Printf("  Runs: %d\n", stats.ImportRuns)
		if stats.LastImportAt != "" {
			fmt.Printf("  Last run: %s\n", stats.LastImportAt)
		}
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the article data file for integrity problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := catalog.NewStore(cfg.GetDataFile(), staleAfter(), nil)
		if err := store.Load(); err != nil {
			return err
		}

		reg := catalog.NewRegistry()
		snap := store.Snapshot()

		var problems []string
		seen := map[string]string{}
		for categoryID, articles := range snap.Categories {
			if !reg.KnownCategory(categoryID) {
				problems = append(problems, fmt.Sprintf("unknown category key %q", categoryID))
			}
			for _, a := range articles {
				if a.ID == "" {
					problems = append(problems, fmt.Sprintf("article without id in category %q (title %q)", categoryID, a.Title))
					continue
				}
				if prev, dup := seen[a.ID]; dup {
					problems = append(problems, fmt.Sprintf("duplicate article id %q (categories %q and %q)", a.ID, prev, categoryID))
				}
				seen[a.ID] = categoryID

				if a.Title == "" {
					problems = append(problems, fmt.Sprintf("article %q has no title", a.ID))
				}
				if want := reg.DisplayName(categoryID); want != "" && a.Category != want {
					problems = append(problems, fmt.Sprintf("article %q category %q does not match its key %q (%s)", a.ID, a.Category, categoryID, want))
				}
				if a.Difficulty != "" && reg.DifficultyID(a.Difficulty) == "" {
					problems = append(problems, fmt.Sprintf("article %q has unknown difficulty %q", a.ID, a.Difficulty))
				}
				if a.Type != "" && a.Type != catalog.TypeArticle && a.Type != catalog.TypeFAQ {
					problems = append(problems, fmt.Sprintf("article %q has unknown type %q", a.ID, a.Type))
				}
			}
		}
		for _, c := range snap.Navigation.Structure {
			if c.ID != catalog.CategoryAll && !reg.KnownCategory(c.ID) {
				problems = append(problems, fmt.Sprintf("navigation references unknown category %q", c.ID))
			}
		}

		if len(problems) == 0 {
			fmt.Printf("OK: %d articles across %d categories\n", len(seen), len(snap.Categories))
			return nil
		}

		sort.Strings(problems)
		for _, p := range problems {
			fmt.Printf("  %s\n", p)
		}
		return fmt.Errorf("%d problem(s) found", len(problems))
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import new articles from configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Sources.Feeds) == 0 {
			return fmt.Errorf("no feeds configured; add sources.feeds entries to the config")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store := catalog.NewStore(cfg.GetDataFile(), staleAfter(), db)

		fmt.Printf("Importing from %d feed(s)...\n", len(cfg.Sources.Feeds))
		importer := collect.NewImporter(cfg, catalog.NewRegistry(), store, db)
		result, err := importer.Run()
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Total found: %d\n", result.TotalFound)
		fmt.Printf("  Imported: %d\n", result.Imported)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Failures: %d\n", result.Failures)

		if len(result.Categories) > 0 {
			fmt.Println("\nNew articles by category:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Categories {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		store := catalog.NewStore(cfg.GetDataFile(), staleAfter(), db)
		if err := store.Load(); err != nil {
			return err
		}

		fmt.Printf("Starting server at http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, store, db)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

func staleAfter() time.Duration {
	return time.Duration(cfg.Content.StaleAfterMin) * time.Minute
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "kakehashi.db")
	return database.Open(dbPath)
}
