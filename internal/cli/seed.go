package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"greenplay-service/internal/app"
	"greenplay-service/internal/catalog"
	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/postgres"
)

// NewSeedCmd loads the quiz catalog and optional demo accounts.
func NewSeedCmd(configPath *string) *cobra.Command {
	var demo bool
	var adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed quiz questions and demo accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			questions, err := catalog.Questions()
			if err != nil {
				return err
			}
			loader, ok := rt.loader.(*postgres.QuestionLoader)
			if !ok {
				return errors.New("seeding requires postgres")
			}
			n, err := loader.SeedQuestions(ctx, questions)
			if err != nil {
				return err
			}
			log.WithField("questions", n).Info("quiz catalog seeded")

			if !demo {
				return nil
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is required to seed accounts")
			}
			accounts := app.NewAccountService(rt.store, rt.tokens(), cfg.Auth.EmailDomain, rt.clock())
			return seedDemoAccounts(ctx, rt, accounts, cfg.Auth.EmailDomain, adminPassword)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also create a demo admin and student")
	cmd.Flags().StringVar(&adminPassword, "password", "Admin@123", "password for the demo accounts")
	return cmd
}

// seedCatalogIfEmpty loads the embedded catalog into Postgres on first boot.
func seedCatalogIfEmpty(ctx context.Context, rt *runtime) error {
	loader, ok := rt.loader.(*postgres.QuestionLoader)
	if !ok {
		return nil
	}
	existing, err := loader.LoadQuestions(ctx)
	if err != nil || len(existing) > 0 {
		return err
	}
	questions, err := catalog.Questions()
	if err != nil {
		return err
	}
	n, err := loader.SeedQuestions(ctx, questions)
	if err != nil {
		return err
	}
	rt.log.WithField("questions", n).Info("empty quiz catalog seeded")
	return nil
}

func seedDemoAccounts(ctx context.Context, rt *runtime, accounts *app.AccountService, emailDomain, password string) error {
	demo := []struct {
		reg  app.Registration
		role domain.Role
	}{
		{app.Registration{Email: "admin@" + emailDomain, FirstName: "Admin", LastName: "User", StudentID: "ADMIN001", Faculty: "FCI"}, domain.RoleAdmin},
		{app.Registration{Email: "student@" + emailDomain, FirstName: "Demo", LastName: "Student", StudentID: "1211100000", Faculty: "FCI"}, domain.RoleStudent},
	}
	for _, d := range demo {
		d.reg.Password = password
		session, err := accounts.Register(ctx, d.reg)
		if errors.Is(err, domain.ErrConflict) {
			rt.log.WithField("email", d.reg.Email).Info("demo account exists")
			continue
		}
		if err != nil {
			return err
		}
		if d.role != domain.RoleStudent {
			err := rt.store.WithinTx(ctx, func(ctx context.Context, tx app.Tx) error {
				return tx.UpdateRole(ctx, session.User.ID, d.role)
			})
			if err != nil {
				return err
			}
		}
		rt.log.WithField("email", d.reg.Email).Info("demo account created")
	}
	return nil
}
