package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/mindtrail/internal/application/history"
	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/infrastructure/cli/helpers"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(provide ContainerProvider) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the action history",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(provide),
		newHistoryAddCommand(provide),
		newHistoryShowCommand(provide),
		newHistoryRemoveCommand(provide),
		newHistoryClearCommand(provide),
		newHistoryStatsCommand(provide),
		newHistoryExportCommand(provide),
	)

	return historyCmd
}

// historyListOptions holds the 'history list' flags
type historyListOptions struct {
	kind    string
	keyword string
	since   string
	until   string
	limit   int
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(provide ContainerProvider) *cobra.Command {
	var opts historyListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			filter, err := buildHistoryFilter(opts)
			if err != nil {
				return err
			}
			return listHistoryEntries(cmd.OutOrStdout(), manager, filter, opts.limit)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "Only show one kind (search|consult|view|api)")
	cmd.Flags().StringVar(&opts.keyword, "keyword", "", "Case-insensitive match on title, description or query")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only entries on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Only entries on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.limit, "limit", domain.DefaultHistoryListLimit, "Max entries to show (0 for all)")
	return cmd
}

// newHistoryAddCommand creates the 'history add' subcommand
func newHistoryAddCommand(provide ContainerProvider) *cobra.Command {
	var (
		kind   string
		answer string
	)

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Record an entry (search query, consult question, viewed title or API endpoint)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := provide()
			if err != nil {
				return err
			}
			if container.History == nil {
				return errors.New(ErrHistoryUnavailable)
			}
			parsed, ok := domain.ParseHistoryKind(kind)
			if !ok {
				return fmt.Errorf(ErrUnknownKind, kind)
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New(ErrTextRequired)
			}
			rec := recordHistoryEntry(cmd.Context(), container.Recorder, parsed, text, answer)
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(domain.KindSearch), "Entry kind (search|consult|view|api)")
	cmd.Flags().StringVar(&answer, "answer", "", "Answer to attach to a consult entry")
	return cmd
}

// newHistoryShowCommand creates the 'history show' subcommand
func newHistoryShowCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			rec, ok := manager.GetItemByID(args[0])
			if !ok {
				return fmt.Errorf(ErrRecordNotFound, args[0])
			}
			return history.WriteJSON(cmd.OutOrStdout(), rec)
		},
	}
}

// newHistoryRemoveCommand creates the 'history rm' subcommand
func newHistoryRemoveCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove one entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			if _, ok := manager.GetItemByID(args[0]); !ok {
				return fmt.Errorf(ErrRecordNotFound, args[0])
			}
			manager.RemoveItem(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(provide ContainerProvider) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all history, or only one kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			return clearHistory(cmd.Context(), cmd.OutOrStdout(), manager, kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only clear this kind")
	return cmd
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals by kind and recency",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			displayHistoryStatistics(cmd.OutOrStdout(), manager.Stats())
			return nil
		},
	}
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := historyManager(provide)
			if err != nil {
				return err
			}
			return exportHistory(cmd.OutOrStdout(), manager, args[0])
		},
	}
}

// historyView is the subset of the manager the commands need
type historyView interface {
	RemoveItem(ctx context.Context, id string)
	ClearAll(ctx context.Context)
	ClearByType(ctx context.Context, kind domain.HistoryKind)
	GetItemByID(id string) (domain.HistoryRecord, bool)
	FilterItems(filter domain.HistoryFilter)
	FilteredItems() []domain.HistoryRecord
	Items() []domain.HistoryRecord
	Stats() domain.HistoryStats
}

func historyManager(provide ContainerProvider) (historyView, error) {
	container, err := provide()
	if err != nil {
		return nil, err
	}
	if container.History == nil {
		return nil, errors.New(ErrHistoryUnavailable)
	}
	return container.History, nil
}

// recordHistoryEntry maps a CLI entry onto the recorder for its kind
func recordHistoryEntry(ctx context.Context, recorder history.Recorder, kind domain.HistoryKind, text, answer string) domain.HistoryRecord {
	switch kind {
	case domain.KindConsult:
		var result *domain.ConsultResult
		if answer != "" {
			result = &domain.ConsultResult{Answer: answer}
		}
		return recorder.RecordConsult(ctx, text, result)
	case domain.KindContentView:
		return recorder.RecordContentView(ctx, text, nil)
	case domain.KindAPITest:
		return recorder.RecordAPITest(ctx, text, nil)
	default:
		return recorder.RecordSearch(ctx, text, nil)
	}
}

// buildHistoryFilter converts list flags into a domain filter
func buildHistoryFilter(opts historyListOptions) (domain.HistoryFilter, error) {
	var filter domain.HistoryFilter
	if opts.kind != "" {
		kind, ok := domain.ParseHistoryKind(opts.kind)
		if !ok {
			return filter, fmt.Errorf(ErrUnknownKind, opts.kind)
		}
		filter.Kind = kind
	}
	dateRange, err := helpers.ParseDateRange(opts.since, opts.until, time.Local)
	if err != nil {
		return filter, err
	}
	filter.DateRange = dateRange
	filter.Keyword = opts.keyword
	return filter, nil
}

// listHistoryEntries prints the filtered view
func listHistoryEntries(out io.Writer, manager historyView, filter domain.HistoryFilter, limit int) error {
	manager.FilterItems(filter)
	records := manager.FilteredItems()

	if len(records) == 0 {
		if len(manager.Items()) == 0 {
			fmt.Fprintln(out, MsgNoHistoryRecorded)
		} else {
			fmt.Fprintln(out, MsgNoMatchingHistory)
		}
		return nil
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s | %s | %-12s | %s\n",
			rec.ID,
			rec.CreatedAt.Local().Format(TimestampFormat),
			helpers.KindLabel(rec.Kind),
			history.Truncate(rec.Title, 60))
	}
	return nil
}

// clearHistory clears everything or one kind
func clearHistory(ctx context.Context, out io.Writer, manager historyView, rawKind string) error {
	if rawKind == "" {
		manager.ClearAll(ctx)
		fmt.Fprintln(out, "History cleared.")
		return nil
	}
	kind, ok := domain.ParseHistoryKind(rawKind)
	if !ok {
		return fmt.Errorf(ErrUnknownKind, rawKind)
	}
	manager.ClearByType(ctx, kind)
	fmt.Fprintf(out, "Cleared %s entries.\n", helpers.KindLabel(kind))
	return nil
}

// exportHistory exports the live set to a JSONL file
func exportHistory(out io.Writer, manager historyView, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records := manager.Items()
	if err := history.ExportJSONL(f, records); err != nil {
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}
	fmt.Fprintf(out, "Exported %d entries to %s\n", len(records), path)
	return nil
}

// displayHistoryStatistics displays formatted history statistics
func displayHistoryStatistics(out io.Writer, stats domain.HistoryStats) {
	if stats.Total == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return
	}

	fmt.Fprintf(out, "Total: %d\nToday: %d\nThis week: %d\nThis month: %d\n",
		stats.Total, stats.Today, stats.ThisWeek, stats.ThisMonth)

	fmt.Fprintln(out, "By kind:")
	for _, row := range helpers.KindBreakdown(stats.ByKind) {
		fmt.Fprintf(out, "  %-12s %d\n", row.Label, row.Count)
	}
}
