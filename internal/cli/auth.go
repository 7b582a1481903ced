package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskflow/internal/client"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/pkg/models"
	"golang.org/x/term"
)

// Login notices.
const (
	MsgLoginSuccess     = "Login successful!"
	MsgLoginFailed      = "Login failed. Check your credentials."
	MsgRegisterFailed   = "Registration failed."
	MsgNoTokenReceived  = "Login failed. No token received."
	MsgCredentialsEmpty = "Username and password are required"
)

var errNotInitialized = errors.New("client not initialized")

// performLogin exchanges credentials for a token and stores the session.
// Nothing is stored unless the server returned a non-empty token.
func performLogin(ctx context.Context, username, password string) (core.Notice, error) {
	return authenticate(ctx, username, password, func(ctx context.Context) (client.LoginResult, error) {
		return API.Login(ctx, username, password)
	}, func(error) string { return MsgLoginFailed })
}

// performRegister creates an account and signs in with the returned token.
func performRegister(ctx context.Context, username, email, password string) (core.Notice, error) {
	return authenticate(ctx, username, password, func(ctx context.Context) (client.LoginResult, error) {
		return API.Register(ctx, username, email, password)
	}, registerFailure)
}

// registerFailure surfaces the server's reason, such as a taken username.
func registerFailure(err error) string {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return MsgRegisterFailed + " " + apiErr.Message
	}
	return MsgRegisterFailed
}

func authenticate(ctx context.Context, username, password string, call func(context.Context) (client.LoginResult, error), failure func(error) string) (core.Notice, error) {
	if API == nil || Sessions == nil {
		return core.Notice{}, errNotInitialized
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.Notice{Level: core.NoticeError, Message: MsgCredentialsEmpty},
			&models.ValidationError{Field: "username", Message: MsgCredentialsEmpty}
	}

	res, err := call(ctx)
	if err != nil {
		if models.Classify(err) == models.KindCanceled {
			return core.Notice{}, err
		}
		return core.Notice{Level: core.NoticeError, Message: failure(err)}, fmt.Errorf("logging in: %w", err)
	}
	if res.Token == "" {
		return core.Notice{Level: core.NoticeError, Message: MsgNoTokenReceived}, errors.New("logging in: no token received")
	}
	if err := Sessions.Set(res.Token, models.User{ID: res.UserID, Username: username}); err != nil {
		return core.Notice{Level: core.NoticeError, Message: fmt.Sprintf(core.MsgUnexpectedError, err)}, fmt.Errorf("saving session: %w", err)
	}

	logEvent(observability.EventLogin, map[string]any{"username": username})
	return core.Notice{Level: core.NoticeSuccess, Message: MsgLoginSuccess}, nil
}

var (
	loginUsername string
	loginPassword string
	registerEmail string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the TaskFlow API",
	Long: `Sign in with a username and password. Missing values are read from
standard input. The token is stored in the session file shared by every
taskflow process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		username, err := promptIfEmpty(cmd.OutOrStdout(), in, "Username: ", loginUsername)
		if err != nil {
			return err
		}
		password, err := promptPassword(cmd, in, "Password: ", loginPassword)
		if err != nil {
			return err
		}

		notice, err := performLogin(commandContext(cmd), username, password)
		if notice.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), notice.Message)
		}
		return err
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		username, err := promptIfEmpty(cmd.OutOrStdout(), in, "Username: ", loginUsername)
		if err != nil {
			return err
		}
		email, err := promptIfEmpty(cmd.OutOrStdout(), in, "Email: ", registerEmail)
		if err != nil {
			return err
		}
		password, err := promptPassword(cmd, in, "Password: ", loginPassword)
		if err != nil {
			return err
		}

		notice, err := performRegister(commandContext(cmd), username, email, password)
		if notice.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), notice.Message)
		}
		return err
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return errNotInitialized
		}
		sess, _ := Sessions.Get()
		if err := Sessions.Clear(); err != nil {
			return fmt.Errorf("logging out: %w", err)
		}
		logEvent(observability.EventLogout, map[string]any{"username": sess.Username()})
		fmt.Fprintln(cmd.OutOrStdout(), core.MsgLoggedOut)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Sessions == nil {
			return errNotInitialized
		}
		sess, err := Sessions.Get()
		if err != nil {
			return fmt.Errorf("reading session: %w", err)
		}
		out := cmd.OutOrStdout()
		if !sess.Active() {
			fmt.Fprintln(out, "Not signed in.")
			return nil
		}

		name := sess.Username()
		if name == "" {
			name = "(unknown user)"
		}
		fmt.Fprintf(out, "Signed in as %s", name)
		if sess.User != nil && sess.User.ID != 0 {
			fmt.Fprintf(out, " (id %d)", sess.User.ID)
		}
		fmt.Fprintln(out)
		if exp, ok := sess.ExpiresAt(); ok {
			if sess.Expired(time.Now()) {
				fmt.Fprintf(out, "Session expired at %s\n", exp.Local().Format(time.RFC1123))
			} else {
				fmt.Fprintf(out, "Session expires at %s\n", exp.Local().Format(time.RFC1123))
			}
		}
		return nil
	},
}

// promptIfEmpty returns value, or reads a line from in after writing label.
func promptIfEmpty(out io.Writer, in *bufio.Reader, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Terminal hooks, replaced in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// promptPassword is promptIfEmpty with echo turned off when stdin is a
// terminal. Piped input is read as a plain line.
func promptPassword(cmd *cobra.Command, in *bufio.Reader, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(int(f.Fd())) {
		return promptIfEmpty(cmd.OutOrStdout(), in, label, value)
	}
	fmt.Fprint(cmd.OutOrStdout(), label)
	b, err := readPassword(int(f.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password")
	registerCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "account email")
	registerCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
