package admin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/flagx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
)

const usage = `usage: authctl <command> [flags]

commands:
  migrate                                     apply schema migrations, purge expired sessions
  create-user -username NAME [-name DISPLAY] [-email ADDR] [-role ROLE]
  seed-users -f users.yaml                    create the accounts listed in a YAML file
  disable-user -username NAME
  enable-user -username NAME
  audit-list [-type EVENT] [-actor NAME] [-since T] [-until T] [-limit N]
  audit-archive -since T [-until T]           copy audit entries to object storage

T is RFC 3339 ("2026-03-02T09:00:00Z") or an age such as "72h".
Server configuration flags (-c, -driver, -d, ...) are accepted alongside.`

// Run executes the command named by args[0]. Configuration flags mixed into
// args are ignored here; each command parses only its own flags.
func (a *Admin) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("no command given")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "migrate":
		return a.Migrate(ctx)
	case "create-user":
		return a.runCreateUser(ctx, rest)
	case "seed-users":
		return a.runSeedUsers(ctx, rest)
	case "disable-user":
		return a.runSetStatus(ctx, rest, models.UserStatusDisabled)
	case "enable-user":
		return a.runSetStatus(ctx, rest, models.UserStatusActive)
	case "audit-list":
		return a.runAuditList(ctx, rest)
	case "audit-archive":
		return a.runAuditArchive(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commandFlags builds a flag set that only sees the flags it declares.
func commandFlags(name string, args []string, define func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	define(fs)

	var allowed []string
	fs.VisitAll(func(f *flag.Flag) {
		allowed = append(allowed, "-"+f.Name, "--"+f.Name)
	})
	return fs.Parse(flagx.FilterArgs(args, allowed))
}

func (a *Admin) runCreateUser(ctx context.Context, args []string) error {
	var nu NewUser
	if err := commandFlags("create-user", args, func(fs *flag.FlagSet) {
		fs.StringVar(&nu.Username, "username", "", "login name")
		fs.StringVar(&nu.DisplayName, "name", "", "display name")
		fs.StringVar(&nu.Email, "email", "", "email address")
		fs.StringVar(&nu.Role, "role", "staff", "role: admin | manager | staff")
	}); err != nil {
		return err
	}
	if nu.Username == "" {
		return fmt.Errorf("create-user: -username is required")
	}

	pw, confirm, err := promptPassword(a.out)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	nu.Password, nu.PasswordConfirmation = pw, confirm

	u, err := a.CreateUser(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
	return nil
}

func (a *Admin) runSeedUsers(ctx context.Context, args []string) error {
	var path string
	if err := commandFlags("seed-users", args, func(fs *flag.FlagSet) {
		fs.StringVar(&path, "f", "", "users file")
	}); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("seed-users: -f is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	created, skipped, err := a.SeedUsers(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d users created, %d already present\n", created, skipped)
	return nil
}

func (a *Admin) runSetStatus(ctx context.Context, args []string, status string) error {
	var username string
	if err := commandFlags("set-status", args, func(fs *flag.FlagSet) {
		fs.StringVar(&username, "username", "", "login name")
	}); err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("-username is required")
	}
	ended, err := a.SetStatus(ctx, username, status)
	if err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	fmt.Fprintf(a.out, "user %s is now %s\n", username, status)
	if ended > 0 {
		fmt.Fprintf(a.out, "%d sessions ended\n", ended)
	}
	return nil
}

func (a *Admin) runAuditList(ctx context.Context, args []string) error {
	var (
		f            models.AuditFilter
		since, until string
	)
	if err := commandFlags("audit-list", args, func(fs *flag.FlagSet) {
		fs.StringVar(&f.EventType, "type", "", "event type")
		fs.StringVar(&f.Actor, "actor", "", "actor")
		fs.StringVar(&since, "since", "", "start of range")
		fs.StringVar(&until, "until", "", "end of range")
		fs.IntVar(&f.Limit, "limit", 100, "maximum entries")
	}); err != nil {
		return err
	}

	var err error
	if f.Since, err = parseTime(since, a.now()); err != nil {
		return err
	}
	if f.Until, err = parseTime(until, a.now()); err != nil {
		return err
	}
	return a.ListAudit(ctx, f)
}

func (a *Admin) runAuditArchive(ctx context.Context, args []string) error {
	var since, until string
	if err := commandFlags("audit-archive", args, func(fs *flag.FlagSet) {
		fs.StringVar(&since, "since", "", "start of range")
		fs.StringVar(&until, "until", "", "end of range, default now")
	}); err != nil {
		return err
	}
	if since == "" {
		return fmt.Errorf("audit-archive: -since is required")
	}

	from, err := parseTime(since, a.now())
	if err != nil {
		return err
	}
	to := a.now()
	if until != "" {
		if to, err = parseTime(until, a.now()); err != nil {
			return err
		}
	}
	return a.ArchiveAudit(ctx, from, to)
}

// parseTime accepts RFC 3339 or a duration counted back from now. Empty
// input is the zero time.
func parseTime(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or a duration", v)
	}
	return now.Add(-d), nil
}

