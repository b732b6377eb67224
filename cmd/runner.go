package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/natanlao/rdx/internal/repositories"
	"github.com/natanlao/rdx/internal/services"
	"github.com/natanlao/rdx/internal/shared"
	"github.com/natanlao/rdx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	secrets    SecretReader
}

// SecretReader captures a secret without echoing it. Swappable in tests.
type SecretReader func(prompt string) (string, error)

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Secrets    SecretReader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Secrets == nil {
		opts.Secrets = terminalSecretReader(opts.Output)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		secrets:    opts.Secrets,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, transferCommand, subscribeCommand, listCommand, unsaveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// terminalSecretReader reads a secret from the controlling terminal without echo.
func terminalSecretReader(out io.Writer) SecretReader {
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return string(secret), nil
	}
}

// prompt asks a question on the terminal; an empty answer falls back to the
// suggestion when one is given.
func (r *Runner) prompt(question, suggestion string) (string, error) {
	suggest := ""
	if suggestion != "" {
		suggest = fmt.Sprintf(" [%s]", suggestion)
	}
	r.writePlain("%s%s: ", question, suggest)

	answer, err := r.input.ReadString('\n')
	if err != nil && answer == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		if suggestion != "" {
			return suggestion, nil
		}
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, question)
	}
	return answer, nil
}

// buildService constructs an unauthenticated Reddit service for a configured account.
func (r *Runner) buildService(account string) (services.Service, error) {
	acct, err := r.config.Account(account)
	if err != nil {
		return nil, err
	}
	return services.NewRedditService(acct, r.config.HTTP)
}

// authenticate prompts for the account's password and performs the OAuth2 handshake.
func (r *Runner) authenticate(ctx context.Context, svc services.Service) error {
	password, err := r.secrets(fmt.Sprintf("Password for /u/%s: ", svc.Username()))
	if err != nil {
		return err
	}
	return svc.Authenticate(ctx, password)
}

// openRunLog opens the run-log database and returns a repository plus a
// failure sink for the engine. A broken database degrades to logging only.
func (r *Runner) openRunLog() (*sql.DB, *repositories.RunRepository, tasks.FailureSink) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		r.logger.Warn("run log unavailable, failures will not be persisted", "err", err)
		return nil, nil, nil
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		r.logger.Warn("run log migrations failed, failures will not be persisted", "err", err)
		db.Close()
		return nil, nil, nil
	}

	repo := repositories.NewRunRepository(db)
	return db, repo, repositories.NewFailureSinkAdapter(repo, r.logger)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// printReport renders the final per-category summary for a run.
func (r *Runner) printReport(report *tasks.Report) {
	r.writePlain("\n")
	r.writePlainHeader("Transfer Report")
	r.writePlain("Source: /u/%s → Destination: /u/%s\n\n", report.Source, report.Destination)

	categories := []struct {
		name   string
		report tasks.CategoryReport
	}{
		{"Subscriptions", report.Subscriptions},
		{"Friends", report.Friends},
		{"Unsaved", report.Unsaved},
		{"Saved", report.Saved},
	}

	for _, c := range categories {
		r.writePlain("%-13s applied %d, failed %d\n", c.name+":", c.report.Applied, c.report.Failed())
	}
	r.writePlain("%-13s %d keys copied\n", "Preferences:", report.Preferences)

	for _, c := range categories {
		if c.report.Failed() == 0 {
			continue
		}
		r.writePlain("\nFailed %s:\n", strings.ToLower(c.name))
		for _, failure := range c.report.Failures {
			r.writePlain("  - %s: %v\n", failure.Item, failure.Err)
		}
	}
}
