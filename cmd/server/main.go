package main

import (
	"context"
	"log"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/swadeshi/heritage/internal/logger"
	"github.com/swadeshi/heritage/pkg/heritage"
	"github.com/swadeshi/heritage/pkg/heritage/api"
	"github.com/swadeshi/heritage/pkg/heritage/config"
	"github.com/swadeshi/heritage/pkg/heritage/reconcile"
	"github.com/tendant/chi-demo/app"
)

// Config holds settings that live outside the library configuration
type Config struct {
	JWTSecret string `env:"JWT_SECRET" env-required:"true"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogPretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	serverCfg, err := config.Load(config.WithEnv())
	if err != nil {
		lg.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := serverCfg.BuildService(ctx, lg)
	if err != nil {
		lg.Fatalf("Failed to build service: %v", err)
	}
	defer rt.Close()

	scheduler, err := reconcile.NewScheduler(serverCfg.ReconcileSchedule, reconcile.New(rt.Repository, lg), lg)
	if err != nil {
		lg.Fatalf("Failed to schedule reconcile: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	lg.Infof("heritage service starting: environment=%s database=%s images=%s policy=%s",
		serverCfg.Environment, serverCfg.DatabaseType, serverCfg.ImageStore, serverCfg.Policy)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	router := api.NewRouter(rt.Service, api.NewJWTAuth(cfg.JWTSecret), api.Options{
		Logger: lg,
		Limits: heritage.MediaLimits{MaxImages: serverCfg.MaxImages, MaxImageBytes: serverCfg.MaxImageBytes},
	})
	server.R.Route("/api", func(r chi.Router) {
		r.Use(api.RequestLogger(lg))
		r.Mount("/", router)
	})

	// Start server
	server.Run()
}
