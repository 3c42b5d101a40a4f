package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"budget/internal/draft"
	"budget/internal/gateway"
	"budget/internal/log"
)

// Deps are the process-level inputs of the command tree. Zero values use
// the process streams and arguments.
type Deps struct {
	Args []string
	In   io.Reader
	Out  io.Writer
	Err  io.Writer
	// Gateway replaces the configured backend when set.
	Gateway gateway.Gateway
}

type runner struct {
	deps    Deps
	backend string
	app     *App
}

// Execute runs the command tree and reports a failure on the error stream.
func Execute(ctx context.Context, deps Deps) error {
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}

	r := &runner{deps: deps}
	defer r.close()

	root := r.rootCommand()
	if deps.Args != nil {
		root.SetArgs(deps.Args)
	}
	err := root.ExecuteContext(ctx)
	if err != nil {
		fprintf(deps.Err, "Error: %s\n", UserMessage(err))
	}
	return err
}

func (r *runner) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "budget",
		Short: "Track income, expenses and shared balances",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.open(cmd.Context())
		},
	}
	root.SetIn(r.deps.In)
	root.SetOut(r.deps.Out)
	root.SetErr(r.deps.Err)
	root.PersistentFlags().StringVar(&r.backend, "backend", "", "gateway backend (http, memory, local); overrides BUDGET_BACKEND")

	root.AddCommand(
		r.dashboardCommand(),
		r.txCommand(),
		r.accountsCommand(),
		r.groupsCommand(),
		r.peopleCommand(),
		r.settleCommand(),
		r.exportCommand(),
		r.watchCommand(),
	)
	return root
}

func (r *runner) open(ctx context.Context) error {
	logger := SetupLogger(r.deps.Err, os.Getenv("LOG_LEVEL"))
	app, err := openApp(ctx, logger, r.backend, r.deps.Gateway)
	if err != nil {
		return err
	}
	r.app = app
	return nil
}

func (r *runner) close() {
	if r.app == nil {
		return
	}
	if err := r.app.Close(); err != nil {
		r.app.Logger.Warn("Cleanup failed", log.FieldError, err)
	}
	r.app = nil
}

// UserMessage renders err for the terminal: field messages for validation
// errors, the gateway message for gateway errors, the error text otherwise.
func UserMessage(err error) string {
	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		return verr.Message()
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gateway.UserMessage(err)
	}
	return err.Error()
}
