package main

import (
	"context"
	"fmt"

	"github.com/natanlao/rdx/internal/formatter"
	"github.com/natanlao/rdx/internal/shared"
	"github.com/natanlao/rdx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// List prints one account's saved items in chronological order, optionally
// exporting the listing to CSV.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	account := cmd.StringArg("account")
	if account == "" {
		return fmt.Errorf("%w: account name", shared.ErrMissingArgument)
	}

	svc, err := r.buildService(account)
	if err != nil {
		return err
	}
	if err := r.authenticate(ctx, svc); err != nil {
		return err
	}

	items, err := tasks.FetchSaved(ctx, svc)
	if err != nil {
		return err
	}

	text, err := formatter.ExportToText(items)
	if err != nil {
		return err
	}
	r.writePlain("%s", text)

	if path := cmd.String("csv"); path != "" {
		if err := formatter.WriteCSVExport(items, path); err != nil {
			return err
		}
		r.writePlain("\n✓ Exported %d items to %s\n", len(items), path)
	}

	return nil
}

// UnsaveItems removes saved items from one account, newest first. Destructive
// and not undoable, so it requires typing "proceed" before touching anything.
func (r *Runner) UnsaveItems(ctx context.Context, cmd *cli.Command) error {
	account := cmd.StringArg("account")
	if account == "" {
		return fmt.Errorf("%w: account name", shared.ErrMissingArgument)
	}

	count := int(cmd.Int("count"))
	scope := "ALL saved items"
	if count > 0 {
		scope = fmt.Sprintf("the newest %d saved items", count)
	}
	r.writePlain("This will remove %s for /u/%s.\n", scope, account)

	answer, err := r.prompt(`Type "proceed" to continue`, "")
	if err != nil {
		return err
	}
	if answer != "proceed" {
		r.writePlain("Aborted.\n")
		return nil
	}

	svc, err := r.buildService(account)
	if err != nil {
		return err
	}
	if err := r.authenticate(ctx, svc); err != nil {
		return err
	}

	db, runs, sink := r.openRunLog()
	if db != nil {
		defer db.Close()
	}

	engine := tasks.NewTransferEngine(svc, svc, tasks.EngineOpts{
		Logger:   r.logger,
		Failures: sink,
		Retries:  int(cmd.Int("retries")),
	})

	r.recordRunStart(runs, engine.RunID(), "unsave", svc, svc)
	defer r.recordRunFinish(runs, engine.RunID())

	progressCh := make(chan tasks.ProgressUpdate, 50)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for update := range progressCh {
			r.writePlain("   %s\n", update.Message)
		}
	}()

	report, runErr := engine.Unsave(ctx, svc, count, progressCh)
	close(progressCh)
	<-rendered

	r.writePlain("\nUnsaved %d items, %d failed\n", report.Unsaved.Applied, report.Unsaved.Failed())
	for _, failure := range report.Unsaved.Failures {
		r.writePlain("  - %s: %v\n", failure.Item, failure.Err)
	}
	return runErr
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List an account's saved items, oldest first",
		ArgsUsage: "<account>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "account"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Also export the listing as CSV to this path",
			},
		},
		Action: r.List,
	}
}

func unsaveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "unsave",
		Usage:     "Remove saved items from an account (newest first)",
		ArgsUsage: "<account>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "account"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: "How many items to unsave; 0 removes everything",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Extra attempts per failed item before recording it",
				Value: 2,
			},
		},
		Action: r.UnsaveItems,
	}
}
