package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	AuthModeJWKS = "jwks"
	AuthModeHMAC = "hmac"

	RPCModePostgres = "postgres"
	RPCModeREST     = "rest"
	RPCModeOff      = "off"
)

type Config struct {
	Env         string
	Port        int
	ServiceName string

	StoreBackend string
	DBURL        string
	AutoMigrate  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthMode       string
	AuthProjectID  string
	AuthJWKSURL    string
	AuthIssuer     string
	AuthAudience   string
	AuthHMACSecret string

	AdminExternalID string
	AdminEmail      string
	AdminName       string

	RPCMode     string
	RPCSchema   string
	SupabaseURL string
	SupabaseKey string

	MetadataAPIURL    string
	MetadataAPIKey    string
	FaviconAPIURL     string
	MetadataCacheTTL  time.Duration
	MetadataRateLimit int
	OutboundTimeout   time.Duration

	LookupDir      string
	LookupCacheTTL time.Duration

	CORSAllowedOrigins   []string
	MaxBodyBytes         int64
	OTelExporterEndpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars win over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "err", err)
	}

	projectID := getEnv("AUTH_PROJECT_ID", "")
	storeBackend := getEnv("STORE_BACKEND", StoreBackendPostgres)
	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", ""), "/")

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		ServiceName: getEnv("SERVICE_NAME", "visionhub-api"),

		StoreBackend: storeBackend,
		DBURL:        buildDBURL(),
		AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthMode:       getEnv("AUTH_MODE", AuthModeJWKS),
		AuthProjectID:  projectID,
		AuthJWKSURL:    getEnv("AUTH_JWKS_URL", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"),
		AuthIssuer:     getEnv("AUTH_ISSUER", "https://securetoken.google.com/"+projectID),
		AuthAudience:   getEnv("AUTH_AUDIENCE", projectID),
		AuthHMACSecret: getEnv("AUTH_HMAC_SECRET", ""),

		AdminExternalID: getEnv("ADMIN_EXTERNAL_ID", ""),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		AdminName:       getEnv("ADMIN_NAME", "Admin"),

		RPCMode:     getEnv("RPC_MODE", defaultRPCMode(storeBackend, supabaseURL)),
		RPCSchema:   getEnv("RPC_SCHEMA", "public"),
		SupabaseURL: supabaseURL,
		SupabaseKey: getEnv("SUPABASE_KEY", ""),

		MetadataAPIURL:    getEnv("METADATA_API_URL", "https://jsonlink.io/api/extract"),
		MetadataAPIKey:    getEnv("METADATA_API_KEY", ""),
		FaviconAPIURL:     strings.TrimRight(getEnv("FAVICON_API_URL", "https://favicongrabber.com/api/grab"), "/"),
		MetadataCacheTTL:  time.Duration(getEnvInt("METADATA_CACHE_TTL_SECONDS", 3600)) * time.Second,
		MetadataRateLimit: getEnvInt("METADATA_RATE_LIMIT_PER_MINUTE", 30),
		OutboundTimeout:   time.Duration(getEnvInt("OUTBOUND_TIMEOUT_SECONDS", 8)) * time.Second,

		LookupDir:      getEnv("LOOKUP_DIR", "./data"),
		LookupCacheTTL: time.Duration(getEnvInt("LOOKUP_CACHE_TTL_SECONDS", 30)) * time.Second,

		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// defaultRPCMode follows the store: postgres calls go through the same
// database, otherwise the hosted REST endpoint when one is configured.
func defaultRPCMode(storeBackend, supabaseURL string) string {
	switch {
	case storeBackend == StoreBackendPostgres:
		return RPCModePostgres
	case supabaseURL != "":
		return RPCModeREST
	default:
		return RPCModeOff
	}
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "visionhub")
	pass := getEnv("DB_PASSWORD", "visionhub")
	name := getEnv("DB_NAME", "visionhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env value, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env value, using default", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
