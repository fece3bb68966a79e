package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Napageneral/zedsync/internal/config"
	"github.com/Napageneral/zedsync/internal/export"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	var (
		dbPath         string
		configPath     string
		tags           []string
		force          bool
		verbose        bool
		quiet          bool
		includeContext bool
		workers        int
		jsonOutput     bool
	)

	rootCmd := &cobra.Command{
		Use:   "zedsync [target-dir]",
		Short: "Mirror Zed conversation threads into Markdown",
		Long: `Zedsync incrementally exports Zed's conversation database into a
directory of Markdown files with YAML frontmatter. Runs are
idempotent: only new or changed threads touch the filesystem.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			targetDir := cfg.TargetDir
			if len(args) == 1 {
				targetDir = args[0]
			}
			if targetDir == "" {
				targetDir = "zedsync-export"
			}

			db := dbPath
			if db == "" {
				db = cfg.DBPath
			}
			if db == "" {
				db, err = config.DefaultDBPath()
				if err != nil {
					return err
				}
			}

			runTags := tags
			if len(runTags) == 0 {
				runTags = cfg.Tags
			}

			log := logrus.New()
			log.SetOutput(os.Stderr)
			switch {
			case quiet:
				log.SetLevel(logrus.ErrorLevel)
			case verbose:
				log.SetLevel(logrus.DebugLevel)
			default:
				log.SetLevel(logrus.InfoLevel)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := export.Run(ctx, export.Options{
				DBPath:         db,
				TargetDir:      targetDir,
				Tags:           runTags,
				Force:          force,
				IncludeContext: includeContext,
				Workers:        workers,
				Logger:         log,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				printJSON(stats)
			} else if !quiet {
				fmt.Fprintf(os.Stderr, "%d threads: %d created, %d updated, %d unchanged",
					stats.Total, stats.Created, stats.Updated, stats.Unchanged)
				if stats.Undecodable > 0 {
					fmt.Fprintf(os.Stderr, ", %d skipped", stats.Undecodable)
				}
				if stats.Failed > 0 {
					fmt.Fprintf(os.Stderr, ", %d failed", stats.Failed)
				}
				fmt.Fprintf(os.Stderr, " (%s)\n", stats.Duration.Round(time.Millisecond))
			}

			if stats.Failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&dbPath, "db", "", "Path to threads.db (default: Zed's data directory)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags to stamp into every exported artifact")
	rootCmd.Flags().BoolVar(&force, "force", false, "Rewrite artifacts even when unchanged")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Errors only")
	rootCmd.Flags().BoolVar(&includeContext, "include-context", false, "Keep mention/context blocks in user turns")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "Decode parallelism (default: NumCPU)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("zedsync %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
