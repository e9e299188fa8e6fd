// Package admin implements the operator commands behind authctl: schema
// migration, account provisioning and audit trail export.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/common"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/dbx"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/logging"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/audit"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/config"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/repositories/repomanager"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/security"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/services"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/validator"
	"gopkg.in/yaml.v3"
)

// actor recorded on audit entries written by operator commands.
const actor = "authctl"

var newUserRules = validator.MustParse(map[string]string{
	"username":     "required|max:150",
	"password":     "required|min:8|max:1024|confirmed",
	"display_name": "nullable|max:150",
	"email":        "nullable|email|max:254",
	"role":         "required|in:admin,manager,staff",
})

// NewUser describes an account to provision.
type NewUser struct {
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	PasswordConfirmation string `yaml:"-"`
	DisplayName          string `yaml:"display_name"`
	Email                string `yaml:"email"`
	Role                 string `yaml:"role"`
}

type usersFile struct {
	Users []NewUser `yaml:"users"`
}

// UploaderFactory opens the object storage client used for audit archives.
type UploaderFactory func(ctx context.Context) (audit.Uploader, error)

type Admin struct {
	store    *dbx.Store
	rm       repomanager.RepositoryManager
	toolkit  *security.Toolkit
	trail    *audit.Trail
	sessions *services.SessionService
	cfg      *config.Config
	out      io.Writer
	now      timex.Clock
	uploader UploaderFactory
}

type Option func(*Admin)

func WithClock(now timex.Clock) Option {
	return func(a *Admin) { a.now = now }
}

func WithUploader(f UploaderFactory) Option {
	return func(a *Admin) { a.uploader = f }
}

func New(store *dbx.Store, cfg *config.Config, log logging.Logger, out io.Writer, opts ...Option) *Admin {
	a := &Admin{
		store: store,
		rm:    repomanager.NewSQLRepositoryManager(store.Dialect()),
		cfg:   cfg,
		out:   out,
		now:   timex.UTCNow,
	}
	a.uploader = func(ctx context.Context) (audit.Uploader, error) {
		return audit.NewS3Client(ctx, a.cfg)
	}
	for _, opt := range opts {
		opt(a)
	}

	a.toolkit = security.NewToolkit(cfg, security.WithClock(a.now))
	a.trail = audit.NewTrail(store.DB(), a.rm, log.With("module", "authctl"), audit.WithClock(a.now))
	a.sessions = services.NewSessionService(store.DB(), a.rm, cfg, a.now)
	return a
}

// Migrate brings the schema up to date and drops expired sessions.
func (a *Admin) Migrate(ctx context.Context) error {
	if err := a.rm.RunMigrations(ctx, a.store.DB()); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	n, err := a.sessions.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "schema up to date, %d expired sessions removed\n", n)
	return nil
}

// CreateUser validates nu, hashes its password and stores an active account.
// An existing username yields common.ErrorAlreadyExists.
func (a *Admin) CreateUser(ctx context.Context, nu NewUser) (*models.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Email = strings.TrimSpace(nu.Email)
	if nu.Role == "" {
		nu.Role = "staff"
	}
	if nu.DisplayName == "" {
		nu.DisplayName = nu.Username
	}

	v := validator.New()
	if !v.Check(map[string]any{
		"username":              nu.Username,
		"password":              nu.Password,
		"password_confirmation": nu.PasswordConfirmation,
		"display_name":          nu.DisplayName,
		"email":                 nu.Email,
		"role":                  nu.Role,
	}, newUserRules) {
		return nil, v.Err()
	}

	hash, err := a.toolkit.HashPassword(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := a.now()
	u, err := a.rm.Users(a.store.DB()).Create(ctx, &models.User{
		Username:     nu.Username,
		PasswordHash: hash,
		DisplayName:  nu.DisplayName,
		Role:         nu.Role,
		Email:        nu.Email,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	_ = a.trail.LogSecurityEvent(ctx, models.EventUserCreated, actor, map[string]any{
		"username": u.Username,
		"role":     u.Role,
	})
	return u, nil
}

// SeedUsers creates every account listed in a YAML users file. Accounts
// that already exist are left untouched.
func (a *Admin) SeedUsers(ctx context.Context, r io.Reader) (created, skipped int, err error) {
	var uf usersFile
	if err := yaml.NewDecoder(r).Decode(&uf); err != nil {
		return 0, 0, fmt.Errorf("reading users file: %w", err)
	}

	repo := a.rm.Users(a.store.DB())
	for _, nu := range uf.Users {
		_, err := repo.GetByUsername(ctx, strings.TrimSpace(nu.Username))
		switch {
		case err == nil:
			skipped++
			continue
		case !errors.Is(err, common.ErrorNotFound):
			return created, skipped, err
		}

		nu.PasswordConfirmation = nu.Password
		if _, err := a.CreateUser(ctx, nu); err != nil {
			return created, skipped, fmt.Errorf("user %q: %w", nu.Username, err)
		}
		created++
	}
	return created, skipped, nil
}

// SetStatus enables or disables an account. Disabling also deletes every
// session of the user, so open browsers are signed out on their next
// request. It returns the number of sessions ended.
func (a *Admin) SetStatus(ctx context.Context, username, status string) (int64, error) {
	if status != models.UserStatusActive && status != models.UserStatusDisabled {
		return 0, fmt.Errorf("unknown status %q", status)
	}

	var ended int64
	err := dbx.WithTx(ctx, a.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := a.rm.Users(tx)
		if err := users.SetStatus(ctx, username, status, a.now()); err != nil {
			return err
		}
		if status != models.UserStatusDisabled {
			return nil
		}
		u, err := users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		ended, err = a.rm.Sessions(tx).DeleteByUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return ended, nil
}

// ListAudit prints the entries matching f as a table.
func (a *Admin) ListAudit(ctx context.Context, f models.AuditFilter) error {
	entries, err := a.trail.List(ctx, f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tACTOR\tOUTCOME\tIP")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.EventType, e.Actor, e.Outcome, e.IPAddress)
	}
	return tw.Flush()
}

// ArchiveAudit copies entries in [since, before) to the archive bucket.
func (a *Admin) ArchiveAudit(ctx context.Context, since, before time.Time) error {
	up, err := a.uploader(ctx)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	key, n, err := audit.NewArchiver(a.trail, up, a.cfg.S3Bucket).Archive(ctx, since, before)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(a.out, "no audit entries in range, nothing archived")
		return nil
	}
	fmt.Fprintf(a.out, "archived %d entries to s3://%s/%s\n", n, a.cfg.S3Bucket, key)
	return nil
}
