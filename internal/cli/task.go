package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// MsgNoTasks is the empty-state message of the task list.
const MsgNoTasks = "No tasks yet. Create your first task!"

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (list, add, status, delete, analyze)",
	Long: `Task commands for scripting. Every change is sent to the server and
only reported once the server has accepted it.`,
}

var (
	taskListStatus string
	taskListJSON   bool

	taskAddDescription string
	taskAddPriority    int
	taskAddDeadline    string
	taskAddAnalyze     bool

	taskDeleteYes bool

	taskAnalyzeDescription string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter models.TaskStatus
		if taskListStatus != "" {
			st, err := models.ParseStatus(taskListStatus)
			if err != nil {
				return err
			}
			filter = st
		}
		if err := requireSession(); err != nil {
			return err
		}

		list := core.NewTaskList(taskListConfig(cliNotifier(cmd), cliNavigator(cmd)))
		defer list.Close()
		if err := list.Load(commandContext(cmd)); err != nil {
			return reported(err)
		}

		var tasks []models.Task
		for _, t := range list.Tasks() {
			if filter == "" || t.Status == filter {
				tasks = append(tasks, t)
			}
		}

		out := cmd.OutOrStdout()
		if taskListJSON {
			if tasks == nil {
				tasks = []models.Task{}
			}
			data, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		printTaskTable(out, tasks)
		return nil
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task with the given title. Status starts as pending and
priority defaults to 3. With --analyze, the configured suggester proposes a
priority and deadline first; those override --priority and --deadline.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		out := cmd.OutOrStdout()

		form := core.NewTaskForm(Suggester, nil)
		form.SetTitle(strings.Join(args, " "))
		form.SetDescription(taskAddDescription)
		form.SetPriority(models.Priority(taskAddPriority))
		if err := form.SetDeadlineText(taskAddDeadline); err != nil {
			return err
		}

		if taskAddAnalyze {
			fmt.Fprintln(out, "Analyzing...")
			sug, err := form.Analyze(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "AI analysis complete! Suggested priority %d, deadline %s\n",
				int(sug.SuggestedPriority), sug.SuggestedDeadline.Format(DeadlineLayout))
		}

		task, err := form.Submit()
		if err != nil {
			return err
		}

		// tasks.local_create only makes sense for the long-lived TUI list.
		cfg := taskListConfig(cliNotifier(cmd), cliNavigator(cmd))
		cfg.LocalCreate = false
		list := core.NewTaskList(cfg)
		defer list.Close()
		created, err := list.Create(ctx, task)
		if err != nil {
			return reported(err)
		}
		printTaskTable(out, []models.Task{created})
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change a task's status (pending, in_progress, completed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		status, err := models.ParseStatus(args[1])
		if err != nil {
			return err
		}
		if err := requireSession(); err != nil {
			return err
		}

		ctx := commandContext(cmd)
		list := core.NewTaskList(taskListConfig(cliNotifier(cmd), cliNavigator(cmd)))
		defer list.Close()
		if err := list.Load(ctx); err != nil {
			return reported(err)
		}
		if err := list.ChangeStatus(ctx, id, status); err != nil {
			if models.Classify(err) == models.KindUnknown {
				return err
			}
			return reported(err)
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		if err := requireSession(); err != nil {
			return err
		}

		if !taskDeleteYes {
			ok, err := confirm(cmd.OutOrStdout(), bufio.NewReader(cmd.InOrStdin()),
				fmt.Sprintf("Are you sure you want to delete task %d? [y/N] ", id))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		list := core.NewTaskList(taskListConfig(cliNotifier(cmd), cliNavigator(cmd)))
		defer list.Close()
		if err := list.Delete(commandContext(cmd), id); err != nil {
			return reported(err)
		}
		return nil
	},
}

var taskAnalyzeCmd = &cobra.Command{
	Use:   "analyze <title>",
	Short: "Suggest a priority and deadline without creating a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Suggester == nil {
			return fmt.Errorf("suggester not initialized")
		}
		sug, err := Suggester.Suggest(commandContext(cmd), strings.Join(args, " "), taskAnalyzeDescription)
		if err != nil {
			return fmt.Errorf("AI analysis failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Suggested priority: %d\nSuggested deadline: %s\n",
			int(sug.SuggestedPriority.Clamp()), sug.SuggestedDeadline.Format(DeadlineLayout))
		return nil
	},
}

// requireSession fails unless a valid session is stored. An expired token is
// cleared so the next login starts clean.
func requireSession() error {
	if API == nil || Sessions == nil {
		return errNotInitialized
	}
	sess, err := Sessions.Get()
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if !sess.Active() {
		return fmt.Errorf("not signed in: run \"taskflow login\"")
	}
	if (core.Gate{}).SessionValid(sess) {
		return nil
	}
	if err := Sessions.Clear(); err != nil {
		return fmt.Errorf("clearing expired session: %w", err)
	}
	logEvent(observability.EventExpired, map[string]any{"username": sess.Username()})
	return fmt.Errorf("%s", core.MsgSessionExpired)
}

func cliNotifier(cmd *cobra.Command) core.Notifier {
	return core.NotifierFunc(func(n core.Notice) {
		w := cmd.OutOrStdout()
		if n.Level == core.NoticeError {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w, n.Message)
	})
}

func cliNavigator(cmd *cobra.Command) core.Navigator {
	return core.NavigatorFunc(func(r core.Route) {
		if r == core.RouteLogin {
			fmt.Fprintln(cmd.ErrOrStderr(), `Run "taskflow login" to sign in.`)
		}
	})
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: "id", Message: fmt.Sprintf("invalid task id %q", s)}
	}
	return id, nil
}

func confirm(out io.Writer, in *bufio.Reader, prompt string) (bool, error) {
	answer, err := promptIfEmpty(out, in, prompt, "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// printTaskTable writes tasks as aligned columns.
func printTaskTable(out io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, MsgNoTasks)
		return
	}
	fmt.Fprintf(out, "%-14s %-4s %-12s %-14s %s\n", "ID", "PRI", "STATUS", "DEADLINE", "TITLE")
	for _, t := range tasks {
		title := t.Title
		if t.AIPriorityScore != nil {
			title += fmt.Sprintf(" (AI: %d)", int(*t.AIPriorityScore))
		}
		fmt.Fprintf(out, "%-14d %-4s %-12s %-14s %s\n",
			t.ID, fmt.Sprintf("P%d", int(t.Priority)), t.Status.Label(), formatDeadline(t.Deadline), title)
	}
}

func init() {
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status (pending, in_progress, completed)")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output as JSON")

	taskAddCmd.Flags().StringVarP(&taskAddDescription, "description", "d", "", "Task description")
	taskAddCmd.Flags().IntVarP(&taskAddPriority, "priority", "p", int(models.DefaultPriority), "Priority from 1 (lowest) to 5 (highest)")
	taskAddCmd.Flags().StringVar(&taskAddDeadline, "deadline", "", "Deadline as YYYY-MM-DD")
	taskAddCmd.Flags().BoolVar(&taskAddAnalyze, "analyze", false, "Ask the suggester for priority and deadline")

	taskDeleteCmd.Flags().BoolVarP(&taskDeleteYes, "yes", "y", false, "Delete without asking for confirmation")

	taskAnalyzeCmd.Flags().StringVarP(&taskAnalyzeDescription, "description", "d", "", "Task description")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskAnalyzeCmd)
	registerTaskCompletions()
	rootCmd.AddCommand(taskCmd)
}
