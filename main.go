package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/admission"
	"github.com/example/faces-api/internal/config"
	"github.com/example/faces-api/internal/facedetect"
	"github.com/example/faces-api/internal/grpcclient"
	"github.com/example/faces-api/internal/handlers"
	"github.com/example/faces-api/internal/imageprocessor"
	"github.com/example/faces-api/internal/lambdaapi"
	"github.com/example/faces-api/internal/logging"
	"github.com/example/faces-api/internal/publisher"
	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/usecase"
)

// photoStore is what both metadata backends provide.
type photoStore interface {
	usecase.PhotoWriter
	usecase.PhotoFinder
	Close(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store := initStore(ctx, cfg, logger)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("closing metadata store failed", zap.Error(err))
		}
	}()

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	cache := initCache(redisCtx, cfg, logger)

	var (
		submitter *usecase.SubmissionUseCase
		finder    *usecase.QueryUseCase
	)
	if cfg.ServesSubmit() {
		limiter, err := admission.NewLimiter(cfg.RateLimit, cfg.RateLimitWindow, cfg.RateLimitMaxSources)
		if err != nil {
			logger.Fatal("failed to build rate limiter", zap.Error(err))
		}
		detector, closeDetector := initDetector(ctx, cfg, logger)
		defer closeDetector()

		pub, err := publisher.NewCloudinaryPublisher(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Fatal("failed to configure cloudinary", zap.Error(err))
		}

		normalizer := imageprocessor.NewImagingNormalizer(cfg.ImageMaxDimension, cfg.JPEGQuality)
		submitter = usecase.NewSubmissionUseCase(limiter, normalizer, detector, pub, store, cfg.CloudinaryFolder, logger).
			WithQueryCache(cache)
	}
	if cfg.ServesQuery() {
		finder = usecase.NewQueryUseCase(store, cache, cfg.QueryCacheTTL, logger)
	}

	switch cfg.LambdaHandler {
	case config.LambdaSubmit:
		h := lambdaapi.NewHandler(submitter, nil, logger)
		logger.Info("starting lambda handler", zap.String("handler", cfg.LambdaHandler))
		lambda.Start(h.Submit)
		return
	case config.LambdaQuery:
		h := lambdaapi.NewHandler(nil, finder, logger)
		logger.Info("starting lambda handler", zap.String("handler", cfg.LambdaHandler))
		lambda.Start(h.Query)
		return
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.Metrics(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	handlers.RegisterRoutes(r, submitter, finder, cfg.MaxUploadBytes)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("faces API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
	}
}

func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) photoStore {
	if cfg.MetadataBackend == config.BackendPostgres {
		db, err := repository.OpenPostgres(ctx, cfg.PostgresDSN, cfg.MetadataPoolSize)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		repo := repository.NewPostgresPhotoRepository(db, logger)
		if err := repo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		return repo
	}

	// The Mongo client connects on first use and is reused across invocations.
	repo, err := repository.NewMongoPhotoRepository(repository.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		PoolSize:   uint64(cfg.MetadataPoolSize),
	}, logger)
	if err != nil {
		logger.Fatal("failed to configure mongo", zap.Error(err))
	}
	return repo
}

func initDetector(ctx context.Context, cfg *config.Config, logger *zap.Logger) (facedetect.Detector, func()) {
	if cfg.FaceDetector == config.DetectorGRPC {
		detector, conn, err := grpcclient.DialFaceDetector(ctx, cfg.FaceDetectorAddr, logger)
		if err != nil {
			logger.Fatal("failed to connect to face detector", zap.Error(err))
		}
		return detector, func() { _ = conn.Close() }
	}

	detector, err := facedetect.NewRekognitionDetectorFromEnv(ctx, cfg.AWSRegion)
	if err != nil {
		logger.Fatal("failed to configure rekognition", zap.Error(err))
	}
	return detector, func() {}
}

// initCache returns nil when no Redis address is configured.
func initCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) usecase.Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, query cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return usecase.NewRedisCache(client)
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
