package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mystica-ai/mystica/internal/profile"
	"github.com/mystica-ai/mystica/plugin/tarot/analytics"
	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/generator"
	"github.com/mystica-ai/mystica/plugin/tarot/strategy"
	"github.com/mystica-ai/mystica/plugin/tarot/warmer"
	apiv1 "github.com/mystica-ai/mystica/server/router/api/v1"
	"github.com/mystica-ai/mystica/server/scheduler"
	"github.com/mystica-ai/mystica/store"
	"github.com/mystica-ai/mystica/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "mystica",
	Short: "Interpretation cache server for tarot readings",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:                 viper.GetString("mode"),
			Addr:                 viper.GetString("addr"),
			Port:                 viper.GetInt("port"),
			Data:                 viper.GetString("data"),
			Driver:               viper.GetString("driver"),
			DSN:                  viper.GetString("dsn"),
			Version:              version,
			AIBaseURL:            viper.GetString("ai-base-url"),
			AIAPIKey:             viper.GetString("ai-api-key"),
			AIModel:              viper.GetString("ai-model"),
			CacheFastTTL:         viper.GetDuration("cache-fast-ttl"),
			CacheSweepInterval:   viper.GetDuration("cache-sweep-interval"),
			CacheTTLRefreshEvery: viper.GetDuration("cache-ttl-refresh-every"),
			WarmBatchSize:        viper.GetInt("warm-batch-size"),
			WarmBatchDelay:       viper.GetDuration("warm-batch-delay"),
		}
		if err := instanceProfile.Validate(); err != nil {
			return err
		}
		return run(instanceProfile)
	},
}

func run(instanceProfile *profile.Profile) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return err
	}

	storeInstance := store.New(driver, instanceProfile)
	defer storeInstance.Close()
	if err := storeInstance.Migrate(ctx); err != nil {
		return err
	}

	cacheService := cache.NewService(storeInstance, cache.ServiceConfig{
		FastTTL: instanceProfile.CacheFastTTL,
	})
	defer cacheService.Close()

	engine := strategy.NewEngine(cacheService)
	analyticsService := analytics.NewService(engine, storeInstance)

	var warmerService *warmer.Service
	if instanceProfile.IsAIEnabled() {
		provider := generator.NewProvider(&generator.ProviderConfig{
			BaseURL: instanceProfile.AIBaseURL,
			APIKey:  instanceProfile.AIAPIKey,
			Model:   instanceProfile.AIModel,
		})
		generatorService := generator.NewService(provider, cacheService)
		warmerService = warmer.NewService(engine, generatorService, warmer.Config{
			BatchSize:  instanceProfile.WarmBatchSize,
			BatchDelay: instanceProfile.WarmBatchDelay,
		})
	}

	maintenance := scheduler.New(cacheService, engine, analyticsService, scheduler.Config{
		SweepInterval:      instanceProfile.CacheSweepInterval,
		TTLRefreshInterval: instanceProfile.CacheTTLRefreshEvery,
	})
	maintenance.Start()
	defer maintenance.Close()

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.Use(middleware.Recover())

	apiService := apiv1.NewAPIV1Service(instanceProfile, storeInstance, cacheService, analyticsService, warmerService)
	apiService.Register(echoServer)

	address := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	go func() {
		if err := echoServer.Start(address); err != nil {
			slog.Info("server stopped", "error", err)
		}
	}()
	slog.Info("mystica started",
		"version", instanceProfile.Version,
		"address", address,
		"driver", instanceProfile.Driver,
		"ai_enabled", instanceProfile.IsAIEnabled(),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server gracefully", "error", err)
	}
	return nil
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("mystica")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetDefault("ai-base-url", "https://api.openai.com/v1")
	viper.SetDefault("ai-model", "gpt-4o-mini")
	viper.SetDefault("cache-fast-ttl", time.Hour)
	viper.SetDefault("cache-sweep-interval", 6*time.Hour)
	viper.SetDefault("cache-ttl-refresh-every", 24*time.Hour)
	viper.SetDefault("warm-batch-size", 10)
	viper.SetDefault("warm-batch-delay", 5*time.Second)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
