package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// completeTaskIDs lists the signed-in user's task IDs with their titles as
// descriptions. It stays silent when there is no usable session.
func completeTaskIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || requireSession() != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	tasks, err := API.ListTasks(commandContext(cmd))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, t := range tasks {
		id := strconv.FormatInt(t.ID, 10)
		if strings.HasPrefix(id, toComplete) {
			out = append(out, id+"\t"+t.Title)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		out = append(out, string(s)+"\t"+s.Label())
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for p := models.MinPriority; p <= models.MaxPriority; p++ {
		out = append(out, strconv.Itoa(int(p)))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeStatusArgs completes "<id> <status>".
func completeStatusArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 1 {
		return completeStatuses(cmd, args, toComplete)
	}
	return completeTaskIDs(cmd, args, toComplete)
}

func registerTaskCompletions() {
	taskStatusCmd.ValidArgsFunction = completeStatusArgs
	taskDeleteCmd.ValidArgsFunction = completeTaskIDs
	_ = taskListCmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = taskAddCmd.RegisterFlagCompletionFunc("priority", completePriorities)
}
