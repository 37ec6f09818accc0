// Command complaintctl is a terminal client for the complaint desk backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/desk"
	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitSuccess = 0
	exitError   = 1
)

// app is the state shared by every command of one invocation.
type app struct {
	in   io.Reader
	out  io.Writer
	lang string

	log  *zap.Logger
	desk *desk.Desk
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) text(key string, args ...any) string {
	return a.desk.Localizer.Format(a.lang, key, args...)
}

// describe renders err in the selected language. Errors outside the
// taxonomy (flags, config) are printed as is.
func (a *app) describe(err error) string {
	if apperr.KindOf(err) == "" {
		return err.Error()
	}
	if a.desk != nil {
		return a.desk.Describe(a.lang, err)
	}
	return localization.Default().Error(a.lang, err)
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "complaintctl",
		Short:         "Submit and track complaints and chat with support",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.log = logging.New(cfg.LogLevel, cfg.Development)
			a.desk, err = desk.New(cfg, a.log)
			return err
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.lang, "lang", localization.DefaultLanguage, "message language (en, uk)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newPasswordCmd(a),
		newProfileCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newNotificationsCmd(a),
		newChatCmd(a),
		newThemeCmd(a),
	)
	return root
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if a.desk != nil {
		if cerr := a.desk.Close(); cerr != nil {
			a.log.Warn("failed to close desk", zap.Error(cerr))
		}
		_ = a.log.Sync()
	}
	if err != nil {
		fmt.Fprintln(errOut, a.describe(err))
		if a.log != nil {
			a.log.Debug("command failed", zap.Error(err))
		}
		return exitError
	}
	return exitSuccess
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
