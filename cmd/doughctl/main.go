package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"doughline/internal/app"
	"doughline/internal/config"
	"doughline/internal/db"
	"doughline/internal/engine"
	"doughline/internal/logger"
	"doughline/internal/migrate"
	"doughline/internal/notify"
	"doughline/internal/repo"
	"doughline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "doughctl",
	Short: "Doughline CLI",
	Long: `Doughline turns baking parameters into a dough formulation and a timed preparation schedule,
then tracks that schedule while you bake.
- calc: compute ingredient masses, preferment split and water temperature.
- schedule: attach a timeline to a formulation and drive it (start, complete steps, reschedule).
- notify run: send step reminders through the configured notifier.
- serve: expose the same operations over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		stateDir, err := db.EnsureWorkspace(workspace)
		if err != nil {
			return err
		}
		lc := logger.Config{Debug: viper.GetBool("debug"), Dir: stateDir}
		if cfg, err := app.ResolveConfig(workspace); err == nil {
			lc.Debug = lc.Debug || cfg.Logging.Debug
			lc.MaxSizeMB = cfg.Logging.MaxSizeMB
			lc.MaxBackups = cfg.Logging.MaxBackups
		}
		return logger.Init(lc)
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DOUGHLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner", "", "owner reference (overrides config owner)")
	rootCmd.PersistentFlags().Bool("debug", false, "log debug output to stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func registerCommands() {
	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(stylesCmd())
	rootCmd.AddCommand(formulationCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage doughline.yml",
		Long:  "doughline.yml holds the owner, default baking conditions, server settings and the reminder notifier.",
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
		Short: "Write a default doughline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			owner, err := app.ResolveOwner(viper.GetString("owner"), nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(owner)), 0o644); err != nil {
				return err
			}
			logger.Info("config written", "path", path, "owner", owner)
			fmt.Printf("wrote %s\n", path)
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
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate doughline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every formulation, schedule command and reminder leaves an event.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var follow bool
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				f.Limit = n
				items, err := e.ListEvents(ctx, owner, f)
				if err != nil {
					return err
				}
				// oldest first, like a log
				for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
					items[i], items[j] = items[j], items[i]
				}
				if !follow {
					return printEvents(items)
				}
				var cursor int64
				if len(items) > 0 {
					cursor = items[len(items)-1].ID
				}
				if err := printEvents(items); err != nil {
					return err
				}
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					next, err := e.EventsAfter(ctx, owner, cursor, 100)
					if err != nil {
						return err
					}
					if len(next) == 0 {
						continue
					}
					cursor = next[len(next)-1].ID
					if err := printEvents(next); err != nil {
						return err
					}
				}
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "Step reminders"}
	n.AddCommand(notifyRunCmd())
	return n
}

func notifyRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send due reminders until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ string) error {
				d, err := newDispatcher(e)
				if err != nil {
					return err
				}
				if once {
					res, err := d.Tick(ctx)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(res)
					}
					fmt.Printf("sent %d, failed %d\n", res.Sent, res.Failed)
					return nil
				}
				return d.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "send what is due now and exit")
	return cmd
}

func newDispatcher(e engine.Engine) (notify.Dispatcher, error) {
	cfg := e.Config.Notifier
	n, err := notify.FromConfig(cfg, os.Getenv("DOUGHLINE_WEBHOOK_SECRET"), logger.Logger)
	if err != nil {
		return notify.Dispatcher{}, err
	}
	return notify.Dispatcher{
		Engine:   e,
		Notifier: n,
		Logger:   logger.Logger,
		Interval: time.Duration(cfg.PollSeconds) * time.Second,
		Batch:    cfg.Batch,
		StateDir: db.StateDir(viper.GetString("workspace")),
		Location: time.Local,
	}, nil
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var withNotifier bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ string) error {
				if !cmd.Flags().Changed("addr") {
					addr = e.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") {
					basePath = e.Config.Server.BasePath
				}
				secretEnv := e.Config.Server.JWTSecretEnv
				authCfg := server.AuthConfig{
					JWTSecret:              os.Getenv(secretEnv),
					AllowLegacyOwnerHeader: e.Config.Server.AllowLegacyOwnerHeader,
					Logger:                 logger.Logger,
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("%s is required for bearer auth", secretEnv)
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: logger.Logger})
				if err != nil {
					return err
				}
				if withNotifier {
					d, err := newDispatcher(e)
					if err != nil {
						return err
					}
					go func() {
						if err := d.Run(ctx); err != nil {
							logger.Error("notifier stopped", "err", err)
						}
					}()
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving", "addr", addr, "base_path", basePath)
				fmt.Printf("Serving Doughline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&withNotifier, "notify", false, "run the reminder dispatcher in the same process")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyRevokeCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				key, raw, err := e.CreateAPIKey(ctx, owner, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "owner_ref": key.OwnerRef, "name": key.Name, "key": raw})
				}
				fmt.Printf("id:  %s\nkey: %s\n", key.ID, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				keys, err := e.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				return e.RevokeAPIKey(ctx, owner, args[0])
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			owner, err := app.ResolveOwner(viper.GetString("owner"), cfg)
			if err != nil {
				return err
			}
			token, err := server.SignToken(os.Getenv(cfg.Server.JWTSecretEnv), owner, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, string) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := app.ResolveConfig(workspace)
	if err != nil {
		return err
	}
	owner, err := app.ResolveOwner(viper.GetString("owner"), cfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}
	return fn(ctx, engine.New(conn, cfg), owner)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
