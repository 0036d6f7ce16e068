package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/example/learnengine/internal/excel"
	"github.com/example/learnengine/pkg/models"
	"github.com/spf13/cobra"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	cfg := excel.DefaultImportConfig()
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import learning history from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.FilePath = args[0]
			return opts.withApp(func(app *App) error {
				cfg.Now = app.Engine.Now
				result, err := excel.ImportHistory(cmd.Context(), app.Engine, cfg)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "processed %d rows: %d imported, %d skipped\n",
					result.TotalProcessed, result.Imported, result.Skipped)
				for _, msg := range result.Errors {
					fmt.Fprintln(out, "  "+msg)
				}
				if !rebuild || len(result.Users) == 0 {
					return nil
				}
				n, err := app.Engine.RebuildProfiles(cmd.Context(), result.Users)
				fmt.Fprintf(out, "rebuilt %d profiles\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&cfg.SheetName, "sheet", cfg.SheetName, "sheet to read from workbooks")
	cmd.Flags().IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "first row to import (1-based)")
	cmd.Flags().StringVar(&cfg.DefaultUserID, "user", "", "user for rows without one")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the profiles of imported users")
	return cmd
}

func newRebuildCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [USER...]",
		Short: "Rebuild cognitive profiles from learning history",
		Long:  "Rebuild the profiles of the given users, or of every user owning learning items when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				n, err := app.Engine.RebuildProfiles(cmd.Context(), args)
				fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d profiles\n", n)
				return err
			})
		},
	}
}

func newDueCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "due USER",
		Short: "List a user's due items, least remembered first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				items, err := app.Engine.DueItems(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printDue(cmd.OutOrStdout(), app, items)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of items")
	return cmd
}

func printDue(out io.Writer, app *App, items []models.LearningItem) error {
	now := app.Engine.Now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tMODULE\tTOPIC\tRETENTION\tREPETITIONS\tNEXT REVIEW")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			it.ID, it.ModuleID, it.TopicID, app.Engine.Retention(&it, now), it.RepetitionCount,
			it.NextReviewAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats USER",
		Short: "Show per-module review statistics for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				stats, err := app.Engine.Statistics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printStatistics(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func printStatistics(out io.Writer, stats []models.ModuleStatistics) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tITEMS\tREVIEWED\tDUE\tMASTERED\tREPETITIONS\tAVG RETENTION")
	for _, st := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\n",
			st.ModuleID, st.Items, st.Reviewed, st.Due, st.Mastered, st.TotalRepetitions, st.AverageRetention)
	}
	return w.Flush()
}

func newRankCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank FILE",
		Short: "Rank learning path candidates read from a JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := readCandidates(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return opts.withApp(func(app *App) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(app.Engine.TopN(candidates, limit))
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "keep only the best n candidates")
	return cmd
}

func readCandidates(stdin io.Reader, path string) ([]models.LearningPathItem, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open candidates: %w", err)
		}
		defer f.Close()
		r = f
	}
	var candidates []models.LearningPathItem
	if err := json.NewDecoder(r).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("failed to parse candidates: %w", err)
	}
	return candidates, nil
}
