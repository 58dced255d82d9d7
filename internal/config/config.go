package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken    string
	AdminIDs    []int64
	Channels    []string
	DBDriver    string
	DBUser      string
	DBPassword  string
	DBName      string
	DBHost      string
	DBPort      string
	SQLitePath  string
	RedisHost   string
	RedisPort   string
	RedisPass   string
	XRocketKey  string
	XRocketURL  string
	Currency    string
	PayoutEvery time.Duration
	// MembershipTimeout bounds every single channel lookup.
	MembershipTimeout time.Duration
	MetricsAddr       string
	MetricsAllowed    []string
	LogProduction     bool
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		BotToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminIDs:          getIDs("ADMIN_IDS"),
		Channels:          getList("REQUIRED_CHANNELS", ""),
		DBDriver:          getEnv("DB_DRIVER", "postgres"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "refbot"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		SQLitePath:        getEnv("SQLITE_PATH", "refbot.db"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPass:         getEnv("REDIS_PASSWORD", ""),
		XRocketKey:        getEnv("XROCKET_API_KEY", ""),
		XRocketURL:        getEnv("XROCKET_API_URL", "https://pay.xrocket.tg"),
		Currency:          getEnv("PAYOUT_CURRENCY", "USDT"),
		PayoutEvery:       getDuration("PAYOUT_INTERVAL", time.Minute),
		MembershipTimeout: getDuration("MEMBERSHIP_TIMEOUT", 5*time.Second),
		MetricsAddr:       getEnv("METRICS_ADDR", ""),
		MetricsAllowed:    getList("METRICS_ALLOWED_CIDRS", "127.0.0.0/8,::1/128"),
		LogProduction:     getBool("LOG_PRODUCTION", false),
	}
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PayoutEnabled reports whether automated payouts are configured.
func (c *Config) PayoutEnabled() bool {
	return c.XRocketKey != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIDs(key string) []int64 {
	var ids []int64
	for _, part := range getList(key, "") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Skipping invalid id %q in %s", part, key)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %t", key, raw, fallback)
		return fallback
	}
	return b
}
