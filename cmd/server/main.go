package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"returnbox_back_end/internal/auth"
	"returnbox_back_end/internal/cache"
	"returnbox_back_end/internal/config"
	"returnbox_back_end/internal/courier"
	"returnbox_back_end/internal/database"
	"returnbox_back_end/internal/events"
	"returnbox_back_end/internal/handlers"
	"returnbox_back_end/internal/logger"
	"returnbox_back_end/internal/metrics"
	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/notify"
	"returnbox_back_end/internal/repository"
	"returnbox_back_end/internal/returns"
	"returnbox_back_end/internal/routes"
	"returnbox_back_end/internal/search"
	"returnbox_back_end/internal/storage"
)

func main() {
	if _, err := logger.Init("info", "json"); err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		zap.S().Fatalf("❌ %v", err)
	}
	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		zap.S().Fatalf("❌ %v", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		zap.S().Fatalf("❌ Datastore: %v", err)
	}
	defer func() { _ = store.Close() }()

	// Redis est facultatif : sans lui, pas de cache, de temps réel ni de rate limit
	var rdb *redis.Client
	if client, err := database.ConnectRedis(ctx, cfg.Redis); err != nil {
		zap.S().Warnf("⚠️ Redis indisponible, mode dégradé: %v", err)
	} else {
		rdb = client
		defer func() { _ = rdb.Close() }()
	}
	appCache := cache.New(rdb)
	bus := events.NewBus(rdb)

	es, err := database.ConnectElastic(cfg.Elastic)
	if err != nil {
		zap.S().Warnf("⚠️ Elasticsearch indisponible, recherche en base: %v", err)
	}
	index := search.NewIndex(es, cfg.Elastic.Index)
	if err := index.EnsureIndex(ctx); err != nil {
		zap.S().Warnf("⚠️ %v", err)
	}

	opts := returns.Options{
		Conditions:   returns.ConditionSet(cfg.Returns.ConditionSet),
		MaxPhotoSize: cfg.Returns.MaxPhotoSize,
	}
	opts.Location, _ = cfg.Returns.Location()

	var photos handlers.PhotoSigner
	minioClient, err := database.ConnectMinIO(ctx, cfg.MinIO)
	if err != nil {
		zap.S().Warnf("⚠️ MinIO indisponible, envoi de fichiers refusé: %v", err)
	} else if minioClient != nil {
		blobs := storage.NewMinioStore(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PublicURL)
		opts.Blobs = blobs
		photos = blobs
	}

	mailer, err := notify.NewMailer(cfg.SMTP)
	if err != nil {
		zap.S().Warnf("⚠️ SMTP indisponible: %v", err)
	}

	svc := returns.NewService(store, courier.NewMock(cfg.Returns.CourierDelay), opts,
		appCache, bus, metrics.Listener{})
	if index.Enabled() {
		svc.AddListener(index)
	}
	if mailer != nil {
		svc.AddListener(mailer)
	}

	authSvc := auth.NewService(store, appCache, bus, cfg.Auth)
	if cfg.Auth.SessionSecret != "" {
		auth.SetupOAuth(cfg.OAuth, cfg.BaseURL, cfg.Auth.SessionSecret, cfg.IsProduction())
	} else {
		zap.S().Warn("⚠️ SESSION_SECRET absent, connexion sociale désactivée")
	}

	h := &handlers.Handler{
		Returns: svc,
		Auth:    authSvc,
		Cache:   appCache,
		Bus:     bus,
		Photos:  photos,
		Origins: []string{cfg.FrontendURL},
	}
	if index.Enabled() {
		h.Search = index
	}

	r := routes.New(routes.Deps{
		Handler:   h,
		Auth:      authSvc,
		Limiter:   middleware.NewRateLimiter(appCache),
		Auditor:   middleware.NewAuditor(store.Audit()),
		Origins:   []string{cfg.FrontendURL},
		MaxUpload: cfg.Returns.MaxPhotoSize,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infof("🚀 Serveur Returnbox lancé sur le port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("❌ Serveur: %v", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("🛑 Arrêt demandé, fermeture des connexions…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorf("❌ Arrêt du serveur: %v", err)
	}
	mailer.Wait()
	zap.S().Info("👋 Serveur arrêté")
}

// openStore choisit le backend selon DATASTORE_DRIVER
func openStore(ctx context.Context, cfg *config.Settings) (repository.Store, error) {
	if cfg.Datastore.Driver != "scylla" {
		db, err := database.OpenGorm(cfg.Datastore)
		if err != nil {
			return nil, err
		}
		store := repository.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	}

	manager := database.NewScyllaManager(cfg.Scylla)
	users, err := manager.GetSession(cfg.Scylla.Users.Keyspace)
	if err != nil {
		return nil, err
	}
	returnsSession, err := manager.GetSession(cfg.Scylla.Returns.Keyspace)
	if err != nil {
		manager.Close()
		return nil, err
	}
	store := repository.NewScyllaStore(users, returnsSession)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
