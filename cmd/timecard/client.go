package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timecard/internal/overlay"
)

func credentialsPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return overlay.DefaultCredentialsPath()
}

func newLoginCmd() *cobra.Command {
	var server, path string
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in to a timecard server and store the tokens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := credentialsPath(path)
			if err != nil {
				return err
			}
			// Keep overlay settings from an earlier login.
			base, _ := overlay.LoadCredentials(path)
			if server == "" {
				server = base.Server
			}
			if server == "" {
				return errors.New("--server is required")
			}
			base.Server = server

			in := bufio.NewReader(os.Stdin)
			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				fmt.Fprint(os.Stderr, "Username: ")
				line, _ := in.ReadString('\n')
				username = strings.TrimSpace(line)
			}
			password, err := readPassword(in)
			if err != nil {
				return err
			}

			save := func(c overlay.Credentials) error { return overlay.SaveCredentials(path, c) }
			client := overlay.NewAPIClient(base, save)
			if _, err := client.Login(cmd.Context(), username, password); err != nil {
				return fail("login failed", err)
			}
			slog.Info("logged in", slog.String("username", username), slog.String("credentials", path))
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server base URL, e.g. http://localhost:5000")
	cmd.Flags().StringVar(&path, "credentials", "", "Credentials file (default ~/.timecard/client.yaml)")
	return cmd
}

func readPassword(in *bufio.Reader) (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := credentialsPath(path)
			if err != nil {
				return err
			}
			if err := overlay.RemoveCredentials(path); err != nil {
				return fail("logout failed", err)
			}
			slog.Info("logged out")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "credentials", "", "Credentials file (default ~/.timecard/client.yaml)")
	return cmd
}

func newOverlayCmd() *cobra.Command {
	var path string
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Show running timers in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := credentialsPath(path)
			if err != nil {
				return err
			}
			creds, err := overlay.LoadCredentials(path)
			if errors.Is(err, overlay.ErrNoCredentials) {
				return errors.New("not logged in, run `timecard login --server URL`")
			}
			if err != nil {
				return err
			}

			// Logs would corrupt the TUI.
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			save := func(c overlay.Credentials) error { return overlay.SaveCredentials(path, c) }
			client := overlay.NewAPIClient(creds, save)
			if err := overlay.WatchCredentials(cmd.Context(), path, quiet, client.SetCredentials); err != nil {
				return err
			}

			if !cmd.Flags().Changed("interval") {
				interval = creds.PollInterval
			}
			model := overlay.NewModel(client, interval).
				WithFocus(creds.LastRecordID).
				OnFocusChange(client.RememberFocus)

			final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if m, ok := final.(overlay.Model); ok && m.LoggedOut {
				return overlay.ErrLoggedOut
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "credentials", "", "Credentials file (default ~/.timecard/client.yaml)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Poll interval (default from poll_interval in the credentials file)")
	return cmd
}
