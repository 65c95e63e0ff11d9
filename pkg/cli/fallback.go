package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/fallback"
)

func NewFallbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Inspect submissions that could not be delivered",
	}
	cmd.AddCommand(newFallbackListCommand())
	return cmd
}

func newFallbackListCommand() *cobra.Command {
	var (
		limit        int
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent failed deliveries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := fallback.Open(cmd.Context(), rt.cfg.Fallback, zap.NewNop().Sugar())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListRecent(cmd.Context(), limit)
			if errors.Is(err, fallback.ErrDisabled) {
				return errors.New("no fallback store configured (set fallback.driver and fallback.dsn)")
			}
			if err != nil {
				return err
			}

			w := rt.Writer()
			switch outputFormat {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			case "", "table":
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "CREATED\tSENDER\tMESSAGE")
				for _, r := range records {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.CreatedAt.Format(time.RFC3339), r.SenderEmail, truncate(r.Message, 60))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q", outputFormat)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: table, json")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
