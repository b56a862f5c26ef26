package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/constants"
)

type Config struct {
	Camera    CameraConfig
	Matching  MatchingConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Watchlist WatchlistConfig
	MQTT      MQTTConfig
	Kafka     KafkaConfig
	Log       LogConfig
	Web       WebConfig
}

type CameraConfig struct {
	Source     string // device path (/dev/video0), rtsp:// URL for ffmpeg, or http(s):// MJPEG URL
	Width      int    // defaults to 640
	Height     int    // defaults to 480
	FPS        int    // defaults to 30
	FFmpegPath string // defaults to ffmpeg from PATH
	// ReleaseOnDisconnect stops the session when the last stream viewer leaves
	ReleaseOnDisconnect bool
}

type MatchingConfig struct {
	Tolerance float64       // defaults to 0.5
	Metric    string        // euclidean (default) or cosine
	Cooldown  time.Duration // defaults to 10s
	UseIndex  bool          // use the HNSW index for nearest neighbour lookups
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type DatabaseConfig struct {
	Driver       string // postgres (default), mariadb or memory (no persistence, development only)
	URL          string // PostgreSQL connection URL or MariaDB DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Backend string // local (default) or s3
	Dir     string // root directory for the local backend

	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string // custom endpoint for MinIO, R2, etc.
	S3AccessKey string
	S3SecretKey string
}

type WatchlistConfig struct {
	Source       string // manifest (default) or database
	ManifestPath string // YAML manifest path for the manifest source
}

type MQTTConfig struct {
	Broker   string // tcp://host:1883, empty disables MQTT alerts
	Topic    string
	ClientID string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers []string // empty disables Kafka alerts
	Topic   string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the env var value or defaultVal when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Camera: CameraConfig{
			Source:              envString("CAMERA_SOURCE", "/dev/video0"),
			Width:               envInt("CAMERA_WIDTH", constants.DefaultFrameWidth),
			Height:              envInt("CAMERA_HEIGHT", constants.DefaultFrameHeight),
			FPS:                 envInt("CAMERA_FPS", constants.DefaultFrameRate),
			FFmpegPath:          envString("FFMPEG_PATH", constants.DefaultFFmpegPath),
			ReleaseOnDisconnect: envBool("CAMERA_RELEASE_ON_DISCONNECT", true),
		},
		Matching: MatchingConfig{
			Tolerance: envFloat("MATCH_TOLERANCE", constants.DefaultTolerance),
			Metric:    envString("MATCH_METRIC", constants.DefaultMetric),
			Cooldown:  time.Duration(envInt("MATCH_COOLDOWN_SECONDS", int(constants.DefaultCooldown/time.Second))) * time.Second,
			UseIndex:  envBool("MATCH_USE_INDEX", false),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Backend:     envString("STORAGE_BACKEND", "local"),
			Dir:         envString("STORAGE_DIR", "data"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Prefix:    os.Getenv("S3_PREFIX"),
			S3Region:    envString("S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Watchlist: WatchlistConfig{
			Source:       envString("WATCHLIST_SOURCE", "manifest"),
			ManifestPath: envString("WATCHLIST_MANIFEST", "watchlist.yaml"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "facewatch/matches"),
			ClientID: envString("MQTT_CLIENT_ID", "facewatch"),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "facewatch.matches"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// IsHTTPSource reports whether the camera source is an MJPEG-over-HTTP endpoint.
func (c *CameraConfig) IsHTTPSource() bool {
	return strings.HasPrefix(c.Source, "http://") || strings.HasPrefix(c.Source, "https://")
}
