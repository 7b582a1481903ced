package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print or install shell completions for taskflow",
	Long: `Print the completion script for bash, zsh, fish or powershell.

  eval "$(taskflow completion bash)"
  taskflow completion zsh --install`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if completionInstall {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("detecting home directory: %w", err)
			}
			target, err := installCompletion(args[0], home)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completions installed to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Restart your shell to pick them up.")
			return nil
		}
		return genCompletion(args[0], cmd.OutOrStdout())
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your home directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

func genCompletion(shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", shell)
	}
}

// completionTarget is where --install writes the script for shell.
func completionTarget(shell, home string) (string, error) {
	switch shell {
	case "bash":
		return filepath.Join(home, ".local", "share", "bash-completion", "completions", "taskflow"), nil
	case "zsh":
		return filepath.Join(home, ".local", "share", "zsh", "site-functions", "_taskflow"), nil
	case "fish":
		return filepath.Join(home, ".config", "fish", "completions", "taskflow.fish"), nil
	case "powershell":
		return "", fmt.Errorf("automatic install is not supported for PowerShell; add the output of 'taskflow completion powershell' to your profile")
	default:
		return "", fmt.Errorf("unsupported shell %q", shell)
	}
}

func installCompletion(shell, home string) (string, error) {
	target, err := completionTarget(shell, home)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("creating completion directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := genCompletion(shell, f)
	closeErr := f.Close()
	if writeErr != nil {
		return "", writeErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return target, nil
}
