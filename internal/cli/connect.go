package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/studysync/internal/theme"
)

// NewConnectCommand creates the connect command group.
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the owner to a remote system",
	}
	cmd.AddCommand(newConnectLMSCommand(rootOpts))
	cmd.AddCommand(newConnectCalendarCommand(rootOpts))
	return cmd
}

type connectLMSOptions struct {
	*RootOptions
	BaseURL string
	Token   string
}

func newConnectLMSCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &connectLMSOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lms",
		Short: "Store an LMS access token and enable sync",
		Long: `Verify an LMS access token and store it in the system keyring.
Missing values are prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.BaseURL == "" || opts.Token == "" {
				if err := lmsForm(&opts.BaseURL, &opts.Token).Run(); err != nil {
					return WrapExitError(ExitCommandError, "prompt aborted", err)
				}
			}

			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			conn, err := a.Ingestor.Connect(cmd.Context(), opts.Owner, opts.BaseURL, opts.Token)
			if err != nil {
				return WrapExitError(ExitCommandError, "lms connection failed", err)
			}
			out := Output{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Emit(conn, "LMS connected", []row{
				{"base url", conn.BaseURL},
				{"user", conn.UserName},
			})
		},
	}

	cmd.Flags().StringVar(&opts.BaseURL, "url", "", "LMS base URL")
	cmd.Flags().StringVar(&opts.Token, "token", "", "LMS access token")

	return cmd
}

func lmsForm(baseURL, token *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Root URL of the LMS (e.g., https://canvas.example.edu)").
				Placeholder("https://canvas.example.edu").
				Value(baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Access Token").
				Description("Generated under Account > Settings > Approved Integrations").
				EchoMode(huh.EchoModePassword).
				Value(token).
				Validate(validateRequired("Token")),
		),
	)
}

type connectCalendarOptions struct {
	*RootOptions
	CalendarID string
	Code       string
}

func newConnectCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &connectCalendarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Authorize the calendar and enable task sync",
		Long: `Run the OAuth consent flow, store the token in the system keyring
and select the calendar tasks are mirrored into.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			if a.CalendarAuth == nil {
				return NewExitError(ExitCommandError,
					"calendar client credentials missing: set calendar.credentials_file")
			}

			if opts.Code == "" {
				fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("Open this URL and paste the code below:"))
				fmt.Fprintln(cmd.OutOrStdout(), a.CalendarAuth.AuthURL(opts.Owner))
				err := huh.NewInput().
					Title("Authorization code").
					Value(&opts.Code).
					Validate(validateRequired("Code")).
					Run()
				if err != nil {
					return WrapExitError(ExitCommandError, "prompt aborted", err)
				}
			}
			if err := a.CalendarAuth.Exchange(cmd.Context(), opts.Owner, strings.TrimSpace(opts.Code)); err != nil {
				return WrapExitError(ExitCommandError, "authorization failed", err)
			}

			cs, err := a.Calendar.Connect(cmd.Context(), opts.Owner, opts.CalendarID)
			if err != nil {
				return WrapExitError(ExitCommandError, "calendar connection failed", err)
			}
			out := Output{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Emit(cs, "Calendar connected", []row{
				{"calendar", cs.CalendarName},
				{"id", cs.CalendarID},
			})
		},
	}

	cmd.Flags().StringVar(&opts.CalendarID, "calendar-id", "", "calendar to mirror tasks into (default primary)")
	cmd.Flags().StringVar(&opts.Code, "code", "", "authorization code from the consent page")

	return cmd
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}
