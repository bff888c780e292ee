package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/query"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func newSearchCmd() *cobra.Command {
	var q models.SearchQuery
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one train search and print a summary",
		Example: `  railbook search --from NDLS --to BCT --date 26-11-2025
  railbook search --from NDLS --to BCT --date 20251126 --quota TQ --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.shutdown(context.WithoutCancel(ctx))

			out, err := a.session.Search(ctx, q)
			if err != nil {
				return err
			}
			logger.Info("search complete", zap.Int("trains", out.TrainCount))
			return printSearch(cmd.OutOrStdout(), a.engine, asJSON)
		},
	}
	cmd.Flags().StringVar(&q.Source, "from", "", "source station code")
	cmd.Flags().StringVar(&q.Destination, "to", "", "destination station code")
	cmd.Flags().StringVar(&q.Date, "date", "", "journey date, DD-MM-YYYY or YYYYMMDD")
	cmd.Flags().StringVar(&q.Quota, "quota", "GN", "quota code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("date")
	return cmd
}

func printSearch(w io.Writer, engine *query.Engine, asJSON bool) error {
	summary, err := engine.Summary()
	if err != nil {
		return err
	}
	available, err := engine.Available()
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"summary": summary, "available": available})
	}

	fmt.Fprintf(w, "Total trains: %d\n", summary.TotalTrains)
	fmt.Fprintf(w, "Available: %d  Waitlist: %d  RAC: %d\n", summary.Available, summary.Waitlist, summary.RAC)
	fmt.Fprintf(w, "Classes: %v\n\n", summary.Classes)
	for i, t := range available {
		fmt.Fprintf(w, "%d. %s %s  %s -> %s (%s)\n", i+1, t.TrainNumber, t.TrainName, t.DepartureTime, t.ArrivalTime, t.Duration)
		for _, c := range t.Classes {
			fare := "-"
			if c.Fare != nil {
				fare = fmt.Sprintf("%.0f", *c.Fare)
			}
			fmt.Fprintf(w, "     %-4s %-20s %s\n", c.ClassCode, c.Status, fare)
		}
	}
	return nil
}
