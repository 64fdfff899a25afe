package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/dramgate/internal/authn"
	"github.com/dropDatabas3/dramgate/internal/cache"
	memcache "github.com/dropDatabas3/dramgate/internal/cache/memory"
	rediscache "github.com/dropDatabas3/dramgate/internal/cache/redis"
	"github.com/dropDatabas3/dramgate/internal/config"
	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/dropDatabas3/dramgate/internal/email"
	"github.com/dropDatabas3/dramgate/internal/http/controllers"
	"github.com/dropDatabas3/dramgate/internal/http/router"
	"github.com/dropDatabas3/dramgate/internal/observability/logger"
	"github.com/dropDatabas3/dramgate/internal/security/password"
	"github.com/dropDatabas3/dramgate/internal/security/secretbox"
	"github.com/dropDatabas3/dramgate/internal/session"
	"github.com/dropDatabas3/dramgate/internal/store/memory"
	"github.com/dropDatabas3/dramgate/internal/store/pg"
	"github.com/dropDatabas3/dramgate/internal/twofactor"
	migrations "github.com/dropDatabas3/dramgate/migrations/postgres"
)

// envSessionSecret es la variable con el secreto HS256 de los tokens de sesión.
const envSessionSecret = "DRAMGATE_SESSION_SECRET"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "dramgate",
		Short:        "dramgate — account security service (passwords, TOTP, sessions)",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DRAMGATE_CONFIG"), "path al YAML de configuración (env DRAMGATE_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de schema (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(configPath)
		},
	}

	genkeyCmd := &cobra.Command{
		Use:   "genkey",
		Short: "Genera una clave maestra base64 para " + secretbox.EnvMasterKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd, genkeyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("DRAMGATE_LOG_LEVEL"), ServiceName: "dramgate"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	box, err := secretbox.FromEnv()
	if err != nil {
		return err
	}

	secret, err := sessionSecret(cfg.App.Env)
	if err != nil {
		return err
	}

	// Storage
	var (
		users  repository.UserRepository
		creds  repository.TwoFactorRepository
		pinger controllers.Pinger
	)
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(context.Background(), cfg.Storage.DSN, pg.Tuning{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer st.Close()
		users, creds, pinger = st, st, st
	default:
		st := memory.New()
		users, creds = st, st
		log.Warn("using in-memory storage, data will not survive a restart")
	}

	// Cache
	var cacheClient cache.Client
	switch cfg.Cache.Kind {
	case "redis":
		cacheClient = rediscache.New(rediscache.Config{
			Addr:   cfg.Cache.Redis.Addr,
			DB:     cfg.Cache.Redis.DB,
			Prefix: cfg.Cache.Redis.Prefix,
		})
	default:
		cacheClient = memcache.New(cfg.CacheMemoryTTL())
	}
	defer func() { _ = cacheClient.Close() }()

	// Email (opcional)
	var notifier *email.SecurityNotifier
	if cfg.SMTP.Enabled {
		sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.FromEmail, cfg.SMTP.Username, cfg.SMTP.Password)
		sender.TLSMode = cfg.SMTP.TLSMode
		notifier = email.NewSecurityNotifier(sender)
	}

	// Services
	sessions := session.NewManager(secret, cfg.SessionTimeout(), cfg.SessionWarningWindow())

	twofactorSvc := twofactor.NewService(twofactor.Deps{
		Users:    users,
		Creds:    creds,
		Box:      box,
		Issuer:   cfg.MFA.Issuer,
		Window:   cfg.MFA.Window,
		Sitewide: cfg.MFA.Enabled,
		Notifier: notifier,
	})

	authnSvc := authn.NewService(authn.Deps{
		Users:        users,
		Second:       twofactorSvc,
		Cache:        cacheClient,
		Sessions:     sessions,
		Sitewide:     cfg.MFA.Enabled,
		ChallengeTTL: cfg.MFAChallengeTTL(),
	})

	healthDeps := map[string]controllers.Pinger{"cache": cacheClient}
	if pinger != nil {
		healthDeps["storage"] = pinger
	}

	handler := router.New(router.Deps{
		Auth:     controllers.NewAuthController(authnSvc),
		MFA:      controllers.NewMFAController(twofactorSvc),
		Session:  controllers.NewSessionController(sessions),
		Config:   controllers.NewConfigController(policyRequirements(cfg)),
		Health:   controllers.NewHealthController(healthDeps),
		Sessions: sessions,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Ping periódico de backends para detectar degradación temprano.
	poller := session.NewPoller(cfg.SessionPollInterval(), func(ctx context.Context) {
		if err := cacheClient.Ping(ctx); err != nil {
			log.Warn("cache ping failed", logger.Err(err))
		}
		if pinger != nil {
			if err := pinger.Ping(ctx); err != nil {
				log.Warn("storage ping failed", logger.Err(err))
			}
		}
	})
	g.Go(func() error {
		poller.Run(ctx)
		return nil
	})

	return g.Wait()
}

func runMigrate(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate: storage.driver debe ser postgres (actual: %s)", cfg.Storage.Driver)
	}

	ctx := context.Background()
	st, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{})
	if err != nil {
		return err
	}
	defer st.Close()

	pool := st.Pool()
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migration (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return err
	}

	entries, err := migrations.FS.ReadDir(migrations.Dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migration WHERE version = $1)`, name).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		sqlBytes, err := migrations.FS.ReadFile(migrations.Dir + "/" + name)
		if err != nil {
			return err
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migration (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		fmt.Printf("applied %s\n", name)
	}
	return nil
}

// sessionSecret lee el secreto HS256. En dev genera uno efímero si falta
// (las sesiones mueren con el proceso); fuera de dev es obligatorio.
func sessionSecret(env string) ([]byte, error) {
	if v := os.Getenv(envSessionSecret); v != "" {
		return []byte(v), nil
	}
	if env != "dev" {
		return nil, fmt.Errorf("%s no seteada", envSessionSecret)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	logger.L().Warn("using ephemeral session secret, tokens will not survive a restart")
	return b, nil
}

func policyRequirements(cfg *config.Config) password.Requirements {
	p := cfg.Security.PasswordPolicy
	return password.Requirements{
		MinLength:          p.MinLength,
		MaxLength:          p.MaxLength,
		ComplexityRequired: p.ComplexityRequired,
		RequireUpper:       p.RequireUpper,
		RequireLower:       p.RequireLower,
		RequireDigit:       p.RequireDigit,
		RequireSymbol:      p.RequireSymbol,
		AllowedSymbols:     p.AllowedSymbols,
		PreventIdentity:    p.PreventIdentity,
	}
}
