package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prw/warehouse-core/internal/config"
	"github.com/prw/warehouse-core/internal/domain/identity"
	"github.com/prw/warehouse-core/internal/domain/meta"
	"github.com/prw/warehouse-core/internal/domain/panel"
	"github.com/prw/warehouse-core/internal/platform/auth"
	"github.com/prw/warehouse-core/internal/platform/db"
	"github.com/prw/warehouse-core/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prw-server",
		Short: "Clinical data warehouse core server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(panelCmd())
	rootCmd.AddCommand(identityCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the warehouse operations API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// storePool opens a pool against the named store.
func storePool(ctx context.Context, cfg *config.Config, store string) (*pgxpool.Pool, error) {
	var url string
	switch store {
	case "warehouse":
		url = cfg.WarehouseDBURL
	case "identity":
		url = cfg.IdentityDBURL
		if url == "" {
			return nil, fmt.Errorf("PRW_ID_DB_URL is not set")
		}
	default:
		return nil, fmt.Errorf("unknown store %q (expected warehouse or identity)", store)
	}

	return db.NewPool(ctx, url, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := cmd.Flags().GetString("store")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := storePool(ctx, cfg, store)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, filepath.Join(dir, store))
			fmt.Printf("Running migrations for store: %s\n", store)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("store", "warehouse", "Target store (warehouse or identity)")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := cmd.Flags().GetString("store")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := storePool(ctx, cfg, store)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, filepath.Join(dir, store))
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for store: %s\n", store)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("store", "warehouse", "Target store (warehouse or identity)")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func panelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Panel assignment operations",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Recompute the full panel assignment relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateOps(); err != nil {
				return err
			}

			rules, err := panel.LoadRules(cfg.RulesFile)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.WarehouseDBURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			metaSvc := meta.NewService(meta.NewRepo(pool), logger)
			engine := panel.NewEngine(rules, cfg.PanelWorkers, logger)
			svc := panel.NewService(panel.NewRepo(pool), engine, metaSvc, logger)

			summary, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Patients:   %d\n", summary.Patients)
			fmt.Printf("Encounters: %d\n", summary.Encounters)
			fmt.Printf("Assigned:   %d\n", summary.Assigned)
			for trace, n := range summary.ByTrace {
				fmt.Printf("  %-16s %d\n", trace, n)
			}
			fmt.Printf("Took:       %s\n", summary.Took)
			return nil
		},
	}
	cmd.AddCommand(runCmd)

	return cmd
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity mapping operations",
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve source patient ids from stdin to pseudonymous ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var sources []string
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					sources = append(sources, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read source ids: %w", err)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.IdentityDBURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			whPool, err := db.NewPool(ctx, cfg.WarehouseDBURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer whPool.Close()

			resolver := identity.NewResolver(cfg.IDSalt, cfg.MaxRehashAttempts, logger)
			svc := identity.NewService(identity.NewRepo(pool), resolver, logger)
			svc.SetMetaRecorder(meta.NewService(meta.NewRepo(whPool), logger))

			assignments, err := svc.ResolveBatch(ctx, sources)
			if err != nil {
				return err
			}

			// Print only the pseudonymous ids, in input order. Source ids
			// stay out of stdout so shell history and logs never carry PHI
			// pairings beyond the identity store itself.
			for _, src := range sources {
				fmt.Println(assignments[src])
			}
			return nil
		},
	}
	cmd.AddCommand(resolveCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show identity mapping statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.IdentityDBURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			resolver := identity.NewResolver(cfg.IDSalt, cfg.MaxRehashAttempts, logger)
			svc := identity.NewService(identity.NewRepo(pool), resolver, logger)

			n, err := svc.MappingCount(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Mapped patients: %d\n", n)
			return nil
		},
	}
	cmd.AddCommand(statsCmd)

	return cmd
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateOps(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	rules, err := panel.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load panel rules")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.WarehouseDBURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to warehouse database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to warehouse database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.OpsJWTSecret),
			Issuer:     cfg.OpsJWTIssuer,
			Audience:   cfg.OpsJWTAudience,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	metaSvc := meta.NewService(meta.NewRepo(pool), logger)
	metaHandler := meta.NewHandler(metaSvc)
	metaHandler.RegisterRoutes(apiV1)

	engine := panel.NewEngine(rules, cfg.PanelWorkers, logger)
	panelSvc := panel.NewService(panel.NewRepo(pool), engine, metaSvc, logger)
	panelHandler := panel.NewHandler(panelSvc)
	panelHandler.RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
