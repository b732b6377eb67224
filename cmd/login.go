package main

import (
	"context"
	"fmt"

	"github.com/natanlao/rdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login interactively captures one account's script-app credentials and
// stores them in the config file. Existing values are offered as suggestions
// so re-running only updates what changed.
//
// This is the only code path that writes the credential store; the transfer
// engine just reads it.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	account := cmd.StringArg("account")
	if account == "" {
		return fmt.Errorf("%w: account name", shared.ErrMissingArgument)
	}

	existing := r.config.Accounts[account]

	username, err := r.prompt("Reddit username", firstNonEmpty(existing.Username, account))
	if err != nil {
		return err
	}

	clientID, err := r.prompt("Client ID", existing.ClientID)
	if err != nil {
		return err
	}

	clientSecret, err := r.secrets("Client secret: ")
	if err != nil {
		return err
	}
	if clientSecret == "" {
		if existing.ClientSecret == "" {
			return fmt.Errorf("%w: client secret", shared.ErrMissingArgument)
		}
		clientSecret = existing.ClientSecret
	}

	r.config.SetAccount(account, shared.AccountConfig{
		Username:     username,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})

	if err := shared.SaveConfig(r.config, r.configPath); err != nil {
		return err
	}

	r.logger.Info("credentials saved", "account", account, "path", r.configPath)
	r.writePlain("✓ Credentials for /u/%s saved to %s\n", username, r.configPath)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Store script-app credentials for an account",
		ArgsUsage: "<account>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "account"},
		},
		Action: r.Login,
	}
}
