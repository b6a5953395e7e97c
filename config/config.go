package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRecognitionEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultRecognitionModel    = "meta-llama/llama-4-scout-17b-16e-instruct"
	DefaultMediaDBBaseURL      = "https://api.themoviedb.org/3"
	DefaultMediaDBImageBaseURL = "https://image.tmdb.org/t/p/"
)

const (
	defaultPort                      = "8080"
	defaultRecognitionTimeoutSeconds = 30
	defaultMediaDBRequestsPerSecond  = 20
	defaultNormalizeWorkers          = 2
	defaultNormalizeQueueSize        = 32
	defaultMaxUploadBytes            = 20 << 20
	defaultSourceFetchTimeoutSeconds = 15
	defaultSessionIdleMinutes        = 30
)

// ErrMissingRecognitionKey is returned when no recognition credentials are
// configured. nothing in the pipeline can run without them.
var ErrMissingRecognitionKey = errors.New("RECOGNITION_API_KEY is not set")

type Config struct {
	Port    string
	LogMode string

	// recognition endpoint (OpenAI-compatible chat completions)
	RecognitionAPIKey   string
	RecognitionEndpoint string
	RecognitionModel    string
	RecognitionPrompt   string // empty means the built-in prompt
	RecognitionTimeout  time.Duration

	// media database; an empty key and token leaves lookup unavailable
	MediaDBAPIKey            string
	MediaDBReadAccessToken   string
	MediaDBBaseURL           string
	MediaDBImageBaseURL      string
	MediaDBLanguage          string
	MediaDBRequestsPerSecond int

	// normalization worker settings
	NormalizeWorkers   int
	NormalizeQueueSize int

	// image source limits
	MaxUploadBytes     int64
	SourceFetchTimeout time.Duration

	// sessions untouched for this long are dropped
	SessionIdleTimeout time.Duration

	CORSAllowedOrigins []string
}

// LookupEnabled reports whether any media database credential is present.
func (c Config) LookupEnabled() bool {
	return c.MediaDBAPIKey != "" || c.MediaDBReadAccessToken != ""
}

// FileConfig is the optional TOML overlay named by CONFIG_FILE. environment
// variables take precedence over anything set here.
type FileConfig struct {
	Recognition struct {
		Endpoint       string `toml:"endpoint"`
		Model          string `toml:"model"`
		Prompt         string `toml:"prompt"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
	} `toml:"recognition"`
	MediaDB struct {
		BaseURL           string `toml:"base_url"`
		ImageBaseURL      string `toml:"image_base_url"`
		Language          string `toml:"language"`
		RequestsPerSecond int    `toml:"requests_per_second"`
	} `toml:"media_db"`
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := strings.TrimSpace(os.Getenv(envVar))
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func readFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config file '%s': %w", path, err)
	}
	return fc, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	fc, err := readFileConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("RECOGNITION_API_KEY"))
	if apiKey == "" {
		return Config{}, ErrMissingRecognitionKey
	}

	recTimeout := getEnvIntOrDefault("RECOGNITION_TIMEOUT_SECONDS",
		firstPositive(fc.Recognition.TimeoutSeconds, defaultRecognitionTimeoutSeconds))
	rps := getEnvIntOrDefault("TMDB_REQUESTS_PER_SECOND",
		firstPositive(fc.MediaDB.RequestsPerSecond, defaultMediaDBRequestsPerSecond))

	cfg := Config{
		Port:    getEnvOrDefault("PORT", defaultPort),
		LogMode: getEnvOrDefault("LOG_MODE", "dev"),

		RecognitionAPIKey:   apiKey,
		RecognitionEndpoint: firstNonEmpty(os.Getenv("RECOGNITION_ENDPOINT"), fc.Recognition.Endpoint, DefaultRecognitionEndpoint),
		RecognitionModel:    firstNonEmpty(os.Getenv("RECOGNITION_MODEL"), fc.Recognition.Model, DefaultRecognitionModel),
		RecognitionPrompt:   firstNonEmpty(os.Getenv("RECOGNITION_PROMPT"), fc.Recognition.Prompt),
		RecognitionTimeout:  time.Duration(recTimeout) * time.Second,

		MediaDBAPIKey:            strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		MediaDBReadAccessToken:   strings.TrimSpace(os.Getenv("TMDB_READ_ACCESS_TOKEN")),
		MediaDBBaseURL:           firstNonEmpty(os.Getenv("TMDB_BASE_URL"), fc.MediaDB.BaseURL, DefaultMediaDBBaseURL),
		MediaDBImageBaseURL:      firstNonEmpty(os.Getenv("TMDB_IMAGE_BASE_URL"), fc.MediaDB.ImageBaseURL, DefaultMediaDBImageBaseURL),
		MediaDBLanguage:          firstNonEmpty(os.Getenv("TMDB_LANGUAGE"), fc.MediaDB.Language),
		MediaDBRequestsPerSecond: rps,

		NormalizeWorkers:   getEnvIntOrDefault("NORMALIZE_WORKERS", defaultNormalizeWorkers),
		NormalizeQueueSize: getEnvIntOrDefault("NORMALIZE_QUEUE_SIZE", defaultNormalizeQueueSize),

		MaxUploadBytes:     int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		SourceFetchTimeout: time.Duration(getEnvIntOrDefault("SOURCE_FETCH_TIMEOUT_SECONDS", defaultSourceFetchTimeoutSeconds)) * time.Second,

		SessionIdleTimeout: time.Duration(getEnvIntOrDefault("SESSION_IDLE_MINUTES", defaultSessionIdleMinutes)) * time.Minute,

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	return cfg, nil
}
