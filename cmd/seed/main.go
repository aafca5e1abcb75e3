// Package main seeds the portal's reference data: the employer skill profiles
// and, optionally, a bootstrap administrator.
//
// Usage:
//
//	seed                                  # company profiles only
//	seed -admin-uid u1 -branch CSE        # plus an admin claim set for u1
//	seed -admin-uid u1 -email a@x -password secret
//	                                      # create the account first
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/infrastructure/identity"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/postgres"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/redis"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// defaultProfiles are the employer profiles every deployment starts with.
var defaultProfiles = []company.Profile{
	{Name: "Google", RequiredSkills: []string{"DSA", "System Design", "Python", "DBMS"}},
	{Name: "Microsoft", RequiredSkills: []string{"C#", "Azure", "DSA", "SQL"}},
	{Name: "Amazon", RequiredSkills: []string{"AWS", "Java", "Distributed Systems", "NoSQL"}},
}

type options struct {
	adminUID string
	branch   string
	email    string
	password string
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.adminUID, "admin-uid", "", "grant the admin claim set to this identity")
	flag.StringVar(&opts.branch, "branch", "", "branch recorded on the admin claim set")
	flag.StringVar(&opts.email, "email", "", "create the admin account with this email if it does not exist")
	flag.StringVar(&opts.password, "password", "", "password for a newly created admin account")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: cfg.Observability.LogFormat,
	}).With(logger.Component("seed"))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	conn, err := postgres.NewConnection(ctx, postgres.DefaultConfig(cfg.Database.URL))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// 1. Company profiles
	companies := postgres.NewCompanyRepository(conn)
	for i := range defaultProfiles {
		p := defaultProfiles[i]
		if err := companies.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("seed %s: %w", p.Name, err)
		}
		log.Info("seeded company profile",
			logger.Company(p.Name),
			logger.Int("skills", len(p.RequiredSkills)),
		)
	}

	if opts.adminUID == "" {
		log.Info("seeding completed")
		return nil
	}

	// 2. Bootstrap administrator
	if cfg.Redis.Disabled {
		return fmt.Errorf("granting admin claims needs redis; REDIS_DISABLED is set")
	}
	rcfg := redis.DefaultConfig()
	rcfg.Addr = cfg.Redis.Addr()
	rcfg.Password = cfg.Redis.Password
	rcfg.DB = cfg.Redis.DB
	client, err := redis.NewClient(ctx, rcfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	accounts := postgres.NewAccountRepository(conn)
	if err := ensureAccount(ctx, accounts, opts); err != nil {
		return err
	}

	claims := account.ClaimsForRole(account.RoleAdmin, opts.branch)
	if err := redis.NewClaimsStore(redis.NewCache(client)).SetClaims(ctx, opts.adminUID, claims); err != nil {
		return fmt.Errorf("set claims for %s: %w", opts.adminUID, err)
	}
	if err := accounts.UpdateRole(ctx, opts.adminUID, account.RoleAdmin, opts.branch); err != nil {
		// The reconciler repairs the mirror on its next pass.
		log.Warn("admin claims set but account mirror not updated",
			logger.AccountID(opts.adminUID),
			logger.Err(err),
		)
	}

	log.Info("seeding completed",
		logger.AccountID(opts.adminUID),
		logger.Role(string(account.RoleAdmin)),
	)
	return nil
}

// ensureAccount creates the admin account when an email is given and no
// account with that id exists yet.
func ensureAccount(ctx context.Context, accounts account.Repository, opts options) error {
	_, err := accounts.GetByID(ctx, opts.adminUID)
	switch {
	case err == nil:
		return nil
	case !shared.IsNotFound(err):
		return fmt.Errorf("load account %s: %w", opts.adminUID, err)
	case opts.email == "":
		// Claims can exist without an account row.
		return nil
	case opts.password == "":
		return fmt.Errorf("-password is required with -email")
	}

	hash, err := identity.HashPassword(opts.password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return accounts.Create(ctx, &account.Account{
		ID:           opts.adminUID,
		Email:        opts.email,
		PasswordHash: hash,
		Role:         account.RoleAdmin,
		Branch:       opts.branch,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
