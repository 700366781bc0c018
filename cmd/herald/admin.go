package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/Herald/internal/adapter/postgres"
	"github.com/Strob0t/Herald/internal/adapter/ristretto"
	"github.com/Strob0t/Herald/internal/adapter/smtp"
	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "verify-smtp":
		return runAdminVerifySMTP(args[1:])
	case "send-test":
		return runAdminSendTest(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "reset-password":
		return runAdminResetPassword(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	case "migrate-version":
		return runAdminMigrateVersion(args[1:])
	case "migrate-rollback":
		return runAdminMigrateRollback(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: herald admin <command> [options]

Commands:
  verify-smtp       Check SMTP connectivity and credentials
  send-test         Send the transport test email
  create-user       Create a portal account (postgres backend)
  reset-password    Reset a portal account's password
  list-users        List portal accounts
  migrate-version   Print the applied schema version
  migrate-rollback  Roll back schema migrations
  help              Show this help message

Examples:
  herald admin verify-smtp
  herald admin verify-smtp --password
  herald admin send-test --to ops@example.edu
  herald admin create-user --email s@example.edu --name "Sam Student" --role student
  herald admin migrate-rollback --steps 1
`)
}

func loadAdminAuth() (*service.AuthService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
	}

	pool, err := connectPostgres(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}

	authSvc := service.NewAuthService(postgres.NewStore(pool), cfg.Auth)
	return authSvc, pool.Close, nil
}

func runAdminVerifySMTP(args []string) error {
	fs := flag.NewFlagSet("verify-smtp", flag.ContinueOnError)
	prompt := fs.Bool("password", false, "prompt for the SMTP password instead of using the configured one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.SMTP.Service != "log" && (*prompt || cfg.SMTP.Password == "") {
		pass, err := promptPassword("SMTP password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		cfg.SMTP.Password = pass
	}

	m := newMailer(cfg)
	if err := m.Verify(context.Background()); err != nil {
		var verr *smtp.VerifyError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "SMTP verification failed (%s): %v\nHint: %s\n", verr.Kind, verr.Err, verr.Kind.Hint())
			return fmt.Errorf("smtp verify %s failed", verr.Addr)
		}
		return fmt.Errorf("smtp verify: %w", err)
	}

	fmt.Fprintf(os.Stderr, "SMTP transport %q ready\n", m.Name())
	return nil
}

func runAdminSendTest(args []string) error {
	fs := flag.NewFlagSet("send-test", flag.ContinueOnError)
	to := fs.String("to", "", "recipient (defaults to mail.test_recipient, then the SMTP user)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	local, err := ristretto.New(1, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("status cache: %w", err)
	}
	defer local.Close()

	mailSvc, err := newMailService(cfg, newMailer(cfg), service.NewStatusStore(local, cfg.Cache.L2TTL, nil))
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	rcpt, err := mailSvc.SendTestEmail(context.Background(), *to)
	if err != nil {
		return fmt.Errorf("send test email: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Test email sent (message id %s)\n", rcpt.MessageID)
	return nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name")
	role := fs.String("role", string(user.RoleStudent), "portal role: student, faculty or admin")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptNewPassword("Password: ")
		if err != nil {
			return err
		}
	}

	authSvc, cleanup, err := loadAdminAuth()
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := authSvc.Register(context.Background(), &user.CreateRequest{
		Email:    *email,
		FullName: *name,
		Password: pass,
		Role:     user.Role(*role),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s, role=%s)\n", u.Email, u.ID, u.Role)
	return nil
}

func runAdminResetPassword(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	password := fs.String("password", "", "new password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	newPass := *password
	if newPass == "" {
		var err error
		newPass, err = promptNewPassword("New password: ")
		if err != nil {
			return err
		}
	}

	authSvc, cleanup, err := loadAdminAuth()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := authSvc.SetPassword(context.Background(), *email, newPass); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Password reset successfully for %s\n", *email)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	authSvc, cleanup, err := loadAdminAuth()
	if err != nil {
		return err
	}
	defer cleanup()

	users, err := authSvc.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tENABLED")
	for i := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			users[i].ID, users[i].Email, users[i].FullName, users[i].Role, users[i].Enabled)
	}
	return w.Flush()
}

func runAdminMigrateVersion(args []string) error {
	fs := flag.NewFlagSet("migrate-version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runAdminMigrateRollback(args []string) error {
	fs := flag.NewFlagSet("migrate-rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func promptNewPassword(prompt string) (string, error) {
	pass, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
