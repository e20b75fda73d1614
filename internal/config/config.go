// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"

	DetectorRekognition = "rekognition"
	DetectorGRPC        = "grpc"

	LambdaSubmit = "submit"
	LambdaQuery  = "query"
)

// Config holds every runtime setting.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	ShutdownTimeout time.Duration
	TrustedProxies  []string
	MaxUploadBytes  int64
	LambdaHandler   string

	RateLimit           int
	RateLimitWindow     time.Duration
	RateLimitMaxSources int

	ImageMaxDimension int
	JPEGQuality       int

	MetadataBackend  string
	MetadataPoolSize int
	MongoURI         string
	MongoDatabase    string
	MongoCollection  string
	PostgresDSN      string
	RedisAddr        string
	QueryCacheTTL    time.Duration

	FaceDetector     string
	AWSRegion        string
	FaceDetectorAddr string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	window, err := millisOrDuration(v.GetString("RATE_LIMIT_WINDOW"))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		TrustedProxies:  splitList(v.GetString("TRUSTED_PROXIES")),
		MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		LambdaHandler:   strings.ToLower(strings.TrimSpace(v.GetString("LAMBDA_HANDLER"))),

		RateLimit:           v.GetInt("RATE_LIMIT"),
		RateLimitWindow:     window,
		RateLimitMaxSources: v.GetInt("RATE_LIMIT_MAX_SOURCES"),

		ImageMaxDimension: v.GetInt("IMAGE_MAX_DIMENSION"),
		JPEGQuality:       v.GetInt("JPEG_QUALITY"),

		MetadataBackend:  strings.ToLower(v.GetString("METADATA_BACKEND")),
		MetadataPoolSize: v.GetInt("METADATA_POOL_SIZE"),
		MongoURI:         v.GetString("MONGODB_URI"),
		MongoDatabase:    v.GetString("MONGODB_DB"),
		MongoCollection:  v.GetString("MONGODB_COLLECTION"),
		PostgresDSN:      v.GetString("DATABASE_DSN"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		QueryCacheTTL:    v.GetDuration("QUERY_CACHE_TTL"),

		FaceDetector:     strings.ToLower(v.GetString("FACE_DETECTOR")),
		AWSRegion:        v.GetString("AWS_REGION"),
		FaceDetectorAddr: v.GetString("FACE_DETECTOR_ADDR"),

		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    v.GetString("CLOUDINARY_FOLDER"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("RATE_LIMIT", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "60000")
	v.SetDefault("RATE_LIMIT_MAX_SOURCES", 10000)
	v.SetDefault("IMAGE_MAX_DIMENSION", 1024)
	v.SetDefault("JPEG_QUALITY", 80)
	v.SetDefault("METADATA_BACKEND", BackendMongo)
	v.SetDefault("METADATA_POOL_SIZE", 2)
	v.SetDefault("MONGODB_DB", "faces")
	v.SetDefault("MONGODB_COLLECTION", "photos")
	v.SetDefault("QUERY_CACHE_TTL", 30*time.Second)
	v.SetDefault("FACE_DETECTOR", DetectorRekognition)
	v.SetDefault("AWS_REGION", "eu-west-2")
	v.SetDefault("CLOUDINARY_FOLDER", "1mfaces")
}

func (c *Config) validate() error {
	var errs []error

	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimitMaxSources <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_SOURCES must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MetadataPoolSize <= 0 {
		errs = append(errs, errors.New("METADATA_POOL_SIZE must be positive"))
	}

	switch c.MetadataBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("METADATA_BACKEND %q is not one of mongo, postgres", c.MetadataBackend))
	}

	switch c.LambdaHandler {
	case "", LambdaSubmit, LambdaQuery:
	default:
		errs = append(errs, fmt.Errorf("LAMBDA_HANDLER %q is not one of submit, query", c.LambdaHandler))
	}

	// Query-only deployments never touch the detector or the publisher.
	if c.LambdaHandler != LambdaQuery {
		switch c.FaceDetector {
		case DetectorRekognition:
		case DetectorGRPC:
			if c.FaceDetectorAddr == "" {
				errs = append(errs, errors.New("FACE_DETECTOR_ADDR is required for the grpc detector"))
			}
		default:
			errs = append(errs, fmt.Errorf("FACE_DETECTOR %q is not one of rekognition, grpc", c.FaceDetector))
		}
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required"))
		}
	}

	return errors.Join(errs...)
}

// ServesSubmit reports whether this process handles uploads.
func (c *Config) ServesSubmit() bool {
	return c.LambdaHandler != LambdaQuery
}

// ServesQuery reports whether this process handles bounding-box queries.
func (c *Config) ServesQuery() bool {
	return c.LambdaHandler != LambdaSubmit
}

// millisOrDuration reads a bare integer as milliseconds and anything else as a
// Go duration such as "60s".
func millisOrDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
