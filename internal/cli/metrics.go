package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskflow/internal/observability"
)

var (
	activityJSON    bool
	activitySince   string
	activityType    string
	activityLevel   string
	activityLimit   int
	activitySummary bool
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	Aliases: []string{"metrics"},
	Short:   "Show the local activity log",
	Long: `Show sign-ins, sign-outs, expired sessions and task changes recorded
by this machine, newest last.

With --summary, print counts derived from the log instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sinceTime, err := parseSinceDuration(activitySince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		out := cmd.OutOrStdout()

		if activitySummary {
			if Summarizer == nil {
				return fmt.Errorf("activity log not initialized")
			}
			sum, err := Summarizer.Summarize(sinceTime)
			if err != nil {
				return fmt.Errorf("summarizing activity: %w", err)
			}
			if activityJSON {
				return writeJSON(out, sum)
			}
			printSummary(out, sinceTime, sum)
			return nil
		}

		if EventLog == nil {
			return fmt.Errorf("activity log not initialized")
		}
		events, err := EventLog.Read(observability.EventFilter{
			Since: &sinceTime,
			Type:  activityType,
			Level: activityLevel,
			Limit: activityLimit,
		})
		if err != nil {
			return fmt.Errorf("reading activity: %w", err)
		}
		if activityJSON {
			if events == nil {
				events = []observability.Event{}
			}
			return writeJSON(out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No activity recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Fprintf(out, "%s  %-5s %-20s %s\n", e.Time.Local().Format("2006-01-02 15:04:05"), e.Level, e.Type, formatEventData(e.Data))
		}
		return nil
	},
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting as JSON: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printSummary(out io.Writer, since time.Time, sum *observability.Summary) {
	fmt.Fprintf(out, "Activity (since %s)\n\n", since.Format("2006-01-02"))
	fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", sum.EventCount)
	fmt.Fprintf(out, "  %-24s %d\n", "Logins:", sum.Logins)
	fmt.Fprintf(out, "  %-24s %d\n", "Logouts:", sum.Logouts)
	fmt.Fprintf(out, "  %-24s %d\n", "Expired sessions:", sum.Expirations)
	fmt.Fprintf(out, "  %-24s %d\n", "Tasks created:", sum.TasksCreated)
	fmt.Fprintf(out, "  %-24s %d\n", "Tasks deleted:", sum.TasksDeleted)
	fmt.Fprintf(out, "  %-24s %d\n", "Tasks completed:", sum.TasksCompleted)

	if len(sum.StatusChanged) > 0 {
		fmt.Fprintln(out, "\n  Status changes:")
		statuses := make([]string, 0, len(sum.StatusChanged))
		for st := range sum.StatusChanged {
			statuses = append(statuses, st)
		}
		sort.Strings(statuses)
		for _, st := range statuses {
			fmt.Fprintf(out, "    %-20s %d\n", st+":", sum.StatusChanged[st])
		}
	}

	if sum.OldestEvent != nil {
		fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", sum.OldestEvent.Format(time.RFC3339))
	}
	if sum.NewestEvent != nil {
		fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", sum.NewestEvent.Format(time.RFC3339))
	}
}

// formatEventData renders data as sorted key=value pairs.
func formatEventData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time before now.
func parseSinceDuration(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	activityCmd.Flags().BoolVar(&activityJSON, "json", false, "Output as JSON")
	activityCmd.Flags().StringVar(&activitySince, "since", "7d", "Time window (e.g. 7d, 30d, 24h)")
	activityCmd.Flags().StringVar(&activityType, "type", "", "Only events of this type (e.g. task.created)")
	activityCmd.Flags().StringVar(&activityLevel, "level", "", "Only events of this level (INFO, WARN)")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 0, "Show only the newest N events")
	activityCmd.Flags().BoolVar(&activitySummary, "summary", false, "Print counts instead of events")
	rootCmd.AddCommand(activityCmd)
}
