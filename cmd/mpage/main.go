package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/config"
	"github.com/xxxsen/mpage/internal/db"
	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/filestore"
	"github.com/xxxsen/mpage/internal/form"
	"github.com/xxxsen/mpage/internal/handler"
	"github.com/xxxsen/mpage/internal/hierarchy"
	"github.com/xxxsen/mpage/internal/job"
	"github.com/xxxsen/mpage/internal/pkg/password"
	"github.com/xxxsen/mpage/internal/render"
	"github.com/xxxsen/mpage/internal/repo"
	"github.com/xxxsen/mpage/internal/schedule"
	"github.com/xxxsen/mpage/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mpage",
		Short: "mpage content server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mpage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			store, closeStore, err := openStore(cfg.Database)
			if err != nil {
				return err
			}
			defer closeStore()
			return runServer(cfg, store)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "hash a password for the users section of the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := readPassword()
			if err != nil {
				return err
			}
			hash, err := password.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func openStore(cfg config.DatabaseConfig) (service.DocumentStore, func(), error) {
	if cfg.Driver == config.DriverMemory {
		logutil.GetLogger(context.Background()).Warn("using in-memory document store, content is lost on exit")
		return repo.NewMemoryDocumentRepo(), func() {}, nil
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return repo.NewDocumentRepo(conn), func() { _ = conn.Close() }, nil
}

func readPassword() (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	first, err := line.PasswordPrompt("Password: ")
	if err != nil {
		return "", err
	}
	second, err := line.PasswordPrompt("Confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	if first == "" {
		return "", fmt.Errorf("password is empty")
	}
	return first, nil
}

func runServer(cfg *config.Config, store service.DocumentStore) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Int("types", len(cfg.Types)),
	)

	types, err := doctype.NewRegistry(cfg.Types)
	if err != nil {
		return fmt.Errorf("init document types: %w", err)
	}
	renderer := render.New()
	for _, name := range types.Names() {
		t, _ := types.Lookup(name)
		for _, f := range t.Fields {
			if f.Render != "" && !renderer.Has(f.Render) {
				return fmt.Errorf("type %s: field %s uses unknown renderer %q", name, f.ID, f.Render)
			}
		}
	}

	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	documentService := service.NewDocumentService(store, types, renderer)
	authService := service.NewAuthService(cfg.Users, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	assetService := service.NewAssetService(files, store)
	tokens := form.NewTokenCache(cfg.Forms.CacheSize, time.Duration(cfg.Forms.TokenTTLSeconds)*time.Second)

	gin.SetMode(gin.ReleaseMode)
	engine, err := handler.NewEngine(handler.RouterDeps{
		Documents:      handler.NewDocumentHandler(documentService, hierarchy.NewResolver(documentService), types, cfg.SiteName),
		Forms:          handler.NewFormHandler(form.New(documentService, tokens)),
		Auth:           handler.NewAuthHandler(authService, cfg.CookieName, cfg.CookieSecure),
		Assets:         handler.NewAssetHandler(assetService),
		Authenticator:  authService,
		CookieName:     cfg.CookieName,
		LoginRateLimit: time.Duration(cfg.LoginRateLimitMs) * time.Millisecond,
		CORSAllowlist:  cfg.CORSAllowlist,
	})
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if cfg.AssetSweep.Cron != "" && assetService.Enabled() {
		sweep := job.NewAssetSweepJob(assetService, time.Duration(cfg.AssetSweep.MinAgeHours)*time.Hour)
		if err := scheduler.AddJob(sweep, cfg.AssetSweep.Cron); err != nil {
			return fmt.Errorf("schedule asset sweep: %w", err)
		}
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

