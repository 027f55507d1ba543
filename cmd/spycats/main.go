package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"spycats/internal/app"
	"spycats/internal/config"
	"spycats/internal/db"
	"spycats/internal/logging"
	"spycats/internal/migrate"
	"spycats/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "spycats",
	Short: "Spy Cat Agency CLI",
	Long: `spycats manages the Spy Cat Agency: spy cats, missions and their targets.
- Spy cats: agents with a breed checked against TheCatAPI, experience and a salary.
- Missions: one to three targets, optionally assigned to a single cat.
- A cat works one incomplete mission at a time.
- Targets carry notes that freeze once the target or its mission is complete.
- A mission completes itself when all of its targets are complete.
Run 'spycats serve' to expose the HTTP API (OpenAPI at {base}/openapi.json, Redoc at /docs).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	bindConfigEnv(viper.GetViper())
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/"+config.FileName+")")
	flags.Bool("json", false, "output JSON")
	flags.String("db-driver", "", "database driver: sqlite or postgres")
	flags.String("db-dsn", "", "database DSN (required for postgres)")
	flags.String("breeds-url", "", "breed registry URL")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"workspace", "config", "json"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	_ = viper.BindPFlag("database.driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", flags.Lookup("db-dsn"))
	_ = viper.BindPFlag("breeds.url", flags.Lookup("breeds-url"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(catCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(breedCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				handler, err := server.New(server.Config{
					Engine:      a.Engine,
					BasePath:    cfg.Server.BasePath,
					CORSOrigins: cfg.Server.CORSOrigins,
					Logger:      a.Logger.Named("http"),
					Metrics:     a.Metrics,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						a.Logger.Warn("shutdown", zap.Error(err))
					}
				}()
				a.Logger.Info("serving",
					zap.String("addr", cfg.Server.Addr),
					zap.String("base_path", cfg.Server.BasePath),
					zap.String("dialect", string(a.Dialect)))
				fmt.Printf("Serving Spy Cat Agency API on http://%s%s (OpenAPI at %s/openapi.json, Redoc at /docs)\n",
					cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				v, err := migrate.Version(a.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"dialect": a.Dialect, "version": v})
				}
				fmt.Printf("%s schema at version %d\n", a.Dialect, v)
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage " + config.FileName,
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Breeds.APIKey != "" {
				shown.Breeds.APIKey = "***"
			}
			return printJSON(shown)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.FromFile(configPath())
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println(color.GreenString("config OK"))
			return nil
		},
	}
}

// --- helpers ---

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

// loadConfig reads the config file (defaults when absent) and applies flag and SPYCATS_* overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.FromFile(p)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(viper.GetViper(), cfg); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Database.Workspace) {
		cfg.Database.Workspace = filepath.Join(viper.GetString("workspace"), cfg.Database.Workspace)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, cfg *config.Config, fn func(context.Context, *app.App) error) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withEngineApp loads config and opens the app for one-shot commands.
func withEngineApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	quietLogging(cfg)
	return withApp(ctx, cfg, fn)
}

// quietLogging lowers one-shot commands to warn unless a level was configured.
func quietLogging(cfg *config.Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
