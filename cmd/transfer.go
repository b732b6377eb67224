package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/natanlao/rdx/internal/repositories"
	"github.com/natanlao/rdx/internal/services"
	"github.com/natanlao/rdx/internal/shared"
	"github.com/natanlao/rdx/internal/tasks"
	"github.com/natanlao/rdx/internal/ui"
	"github.com/urfave/cli/v3"
)

// engineOp is one engine operation run under the progress surface. The
// context it receives is cancellable by that surface (the TUI's abort key).
type engineOp func(ctx context.Context, engine *tasks.TransferEngine, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error)

// Transfer runs a full source → destination account sync.
func (r *Runner) Transfer(ctx context.Context, cmd *cli.Command) error {
	return r.runEngine(ctx, cmd, "transfer", func(ctx context.Context, engine *tasks.TransferEngine, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error) {
		return engine.Run(ctx, progress)
	})
}

// Subscribe copies only subreddit subscriptions from source to destination.
// Split out from the full transfer because new accounts are rate-limited and
// subscriptions are the slow part worth re-running on their own.
func (r *Runner) Subscribe(ctx context.Context, cmd *cli.Command) error {
	return r.runEngine(ctx, cmd, "subscribe", func(ctx context.Context, engine *tasks.TransferEngine, progress chan<- tasks.ProgressUpdate) (*tasks.Report, error) {
		return engine.Subscriptions(ctx, progress)
	})
}

// runEngine wires up both accounts, the run log, and the chosen progress
// surface (plain writer or TUI), then executes one engine operation.
func (r *Runner) runEngine(ctx context.Context, cmd *cli.Command, action string, op engineOp) error {
	srcName := cmd.StringArg("source")
	dstName := cmd.StringArg("dest")
	if srcName == "" || dstName == "" {
		return fmt.Errorf("%w: source and destination accounts", shared.ErrMissingArgument)
	}

	src, err := r.buildService(srcName)
	if err != nil {
		return err
	}
	dst, err := r.buildService(dstName)
	if err != nil {
		return err
	}

	// Fail before prompting for passwords when both accounts share keys.
	if err := tasks.EnsureDistinctIdentity(src, dst); err != nil {
		return err
	}

	if err := r.authenticate(ctx, src); err != nil {
		return err
	}
	if err := r.authenticate(ctx, dst); err != nil {
		return err
	}

	db, runs, sink := r.openRunLog()
	if db != nil {
		defer db.Close()
	}

	engine := tasks.NewTransferEngine(src, dst, tasks.EngineOpts{
		Logger:   r.logger,
		Failures: sink,
		Retries:  int(cmd.Int("retries")),
	})

	r.recordRunStart(runs, engine.RunID(), action, src, dst)
	defer r.recordRunFinish(runs, engine.RunID())

	r.logger.Info("starting run", "action", action, "source", srcName, "dest", dstName, "run_id", engine.RunID())

	if cmd.Bool("tui") {
		return r.runWithTUI(ctx, engine, op)
	}
	return r.runWithWriter(ctx, engine, op)
}

func (r *Runner) runWithWriter(ctx context.Context, engine *tasks.TransferEngine, op engineOp) error {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchSource, tasks.FetchDest:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.CopyPreferences:
				r.writePlain("\n⚙  %s\n", update.Message)
			default:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()

	report, err := op(ctx, engine, progressCh)
	close(progressCh)
	<-rendered

	if report != nil {
		r.printReport(report)
	}
	return err
}

func (r *Runner) runWithTUI(ctx context.Context, engine *tasks.TransferEngine, op engineOp) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/rdx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	prior := r.logger
	r.logger = fileLogger
	defer func() { r.logger = prior }()

	// The abort key cancels this context; the engine stops between items.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewTransferModel(func(progress chan<- tasks.ProgressUpdate) (*tasks.Report, error) {
		return op(ctx, engine, progress)
	}, cancel)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	report, runErr := model.Report()
	if report != nil {
		r.printReport(report)
	}
	return runErr
}

func (r *Runner) recordRunStart(runs *repositories.RunRepository, runID, action string, src, dst services.Service) {
	if runs == nil {
		return
	}
	if err := runs.Create(runID, action, src.Username(), dst.Username()); err != nil {
		r.logger.Warn("failed to record run start", "err", err)
	}
}

func (r *Runner) recordRunFinish(runs *repositories.RunRepository, runID string) {
	if runs == nil {
		return
	}
	if err := runs.Finish(runID); err != nil {
		r.logger.Warn("failed to record run finish", "err", err)
	}
}

func transferFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Extra attempts per failed item before recording it",
			Value: 2,
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Render progress in an interactive terminal UI",
		},
	}
}

func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Usage:     "Sync subscriptions, friends, saved items & preferences to another account",
		ArgsUsage: "<source> <dest>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
			&cli.StringArg{Name: "dest"},
		},
		Flags:  transferFlags(),
		Action: r.Transfer,
	}
}

func subscribeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Copy only subreddit subscriptions to another account",
		ArgsUsage: "<source> <dest>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
			&cli.StringArg{Name: "dest"},
		},
		Flags:  transferFlags(),
		Action: r.Subscribe,
	}
}
