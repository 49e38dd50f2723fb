package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"resumegenie/internal/credits"
	"resumegenie/internal/shared/storage/db"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/users"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("aborted by operator")

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage account credit balances",
}

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		amount, _ := cmd.Flags().GetInt("amount")
		autoApprove, _ := cmd.Flags().GetBool("yes")

		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required")
		}
		ctx := cmd.Context()
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		confirm := confirmGrant
		if autoApprove {
			confirm = nil
		}
		return grant(ctx, &users.PGRepo{DB: sqlDB}, email, amount, confirm)
	},
}

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(grantCmd)

	grantCmd.Flags().StringP("email", "e", "", "account email")
	grantCmd.Flags().IntP("amount", "a", 0, "number of credits to add")
	grantCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	_ = grantCmd.MarkFlagRequired("email")
	_ = grantCmd.MarkFlagRequired("amount")
}

type grantStore interface {
	credits.Store
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// grant tops up email by amount. A nil confirm skips the interactive prompt.
func grant(ctx context.Context, store grantStore, email string, amount int, confirm func(users.User, int) (bool, error)) error {
	if amount <= 0 {
		return credits.ErrInvalidAmount
	}
	email = users.NormalizeEmail(email)
	user, err := store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up %s: %w", email, err)
	}

	if confirm != nil {
		ok, err := confirm(user, amount)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	ledger := credits.NewLedger(store)
	if err := ledger.TopUp(ctx, user.Email, amount); err != nil {
		return err
	}
	balance, err := ledger.Balance(ctx, user.Email)
	if err != nil {
		return err
	}
	telemetry.Info("credits.granted_by_operator", map[string]any{
		"email":   user.Email,
		"amount":  amount,
		"balance": balance,
	})
	fmt.Printf("%s now has %d credits\n", user.Email, balance)
	return nil
}

func confirmGrant(user users.User, amount int) (bool, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Grant %d credits to %s (current balance %d)?", amount, user.Email, user.Credits),
		Items: []string{PromptYes, PromptNo},
	}
	_, result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return result == PromptYes, nil
}
