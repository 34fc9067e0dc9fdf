package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/surveygen/internal/cache"
	"github.com/at-ishikawa/surveygen/internal/database"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect cached surveys",
	}
	cacheCmd.AddCommand(
		newCacheListCommand(),
		newCacheShowCommand(),
		newCacheStatsCommand(),
	)
	return cacheCmd
}

// withDBStore opens the configured database for the duration of fn.
func withDBStore(fn func(store *cache.DBStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == database.DriverMemory {
		return fmt.Errorf("the memory driver is private to the server process")
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(cache.NewDBStore(db))
}

func newCacheListCommand() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached surveys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDBStore(func(store *cache.DBStore) error {
				entries, err := store.List(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), entries, time.Now())
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	return cmd
}

func printEntries(w io.Writer, entries []cache.Entry, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROMPT\tTITLE\tQUESTIONS\tSIZE\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			e.ID,
			e.RawInput,
			e.Document.Title,
			len(e.Document.Questions),
			humanize.Bytes(uint64(len(e.Document.Raw()))),
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
		)
	}
	return tw.Flush()
}

func newCacheShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <prompt>...",
		Short: "Print the cached survey for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := survey.NormalizePrompt(strings.Join(args, " "))
			return withDBStore(func(store *cache.DBStore) error {
				entry, err := store.Lookup(cmd.Context(), key)
				if err != nil {
					return fmt.Errorf("lookup %q: %w", key, err)
				}
				out, err := json.MarshalIndent(entry, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			})
		},
	}
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of cached surveys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDBStore(func(store *cache.DBStore) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Entries: %s\n", humanize.Comma(stats.Entries))
				return err
			})
		},
	}
}
