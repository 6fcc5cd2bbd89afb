package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Relay     RelayConfig
	Calendar  CalendarConfig
	Booking   BookingConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DBConfig is optional. The submission ledger is disabled when Host is empty.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RelayConfig struct {
	Endpoint  string
	AccessKey string
	FromName  string
	Timeout   time.Duration
}

type CalendarConfig struct {
	ProductID  string
	HostDomain string
	Summary    string
	Location   string
	FileName   string
}

type BookingConfig struct {
	Timezone    string
	WindowDays  int
	SessionTTL  time.Duration
	ResetDelay  time.Duration
	OwnerName   string
	OwnerEmail  string
	AllowOrigin string
}

type RateLimitConfig struct {
	ConfirmPerMinute int
	ConfirmBurst     int
	// IPs or CIDRs whose X-Forwarded-For header is believed
	TrustedProxies []string
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom reads the given env file (if it exists) and overlays the
// process environment on top of it.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	config := &Config{
		App: AppConfig{
			Port:     v.GetString("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("APP_LOG_LEVEL"),
		},
		DB: DBConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Relay: RelayConfig{
			Endpoint:  v.GetString("RELAY_ENDPOINT"),
			AccessKey: v.GetString("RELAY_ACCESS_KEY"),
			FromName:  v.GetString("RELAY_FROM_NAME"),
			Timeout:   durationOr(v.GetString("RELAY_TIMEOUT"), 10*time.Second),
		},
		Calendar: CalendarConfig{
			ProductID:  v.GetString("CALENDAR_PRODUCT_ID"),
			HostDomain: v.GetString("CALENDAR_HOST_DOMAIN"),
			Summary:    v.GetString("CALENDAR_SUMMARY"),
			Location:   v.GetString("CALENDAR_LOCATION"),
			FileName:   v.GetString("CALENDAR_FILE_NAME"),
		},
		Booking: BookingConfig{
			Timezone:    v.GetString("BOOKING_TIMEZONE"),
			WindowDays:  v.GetInt("BOOKING_WINDOW_DAYS"),
			SessionTTL:  durationOr(v.GetString("BOOKING_SESSION_TTL"), 2*time.Hour),
			ResetDelay:  durationOr(v.GetString("BOOKING_RESET_DELAY"), 300*time.Millisecond),
			OwnerName:   v.GetString("BOOKING_OWNER_NAME"),
			OwnerEmail:  v.GetString("BOOKING_OWNER_EMAIL"),
			AllowOrigin: v.GetString("BOOKING_ALLOW_ORIGIN"),
		},
		RateLimit: RateLimitConfig{
			ConfirmPerMinute: v.GetInt("RATE_LIMIT_CONFIRM_PER_MINUTE"),
			ConfirmBurst:     v.GetInt("RATE_LIMIT_CONFIRM_BURST"),
			TrustedProxies:   splitList(v.GetString("RATE_LIMIT_TRUSTED_PROXIES")),
		},
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RELAY_ENDPOINT", "https://api.web3forms.com/submit")
	v.SetDefault("RELAY_FROM_NAME", "Portfolio Booking System")
	v.SetDefault("CALENDAR_PRODUCT_ID", "Portfolio")
	v.SetDefault("CALENDAR_HOST_DOMAIN", "portfolio.local")
	v.SetDefault("CALENDAR_SUMMARY", "Consultation Call")
	v.SetDefault("CALENDAR_LOCATION", "Online Meeting")
	v.SetDefault("CALENDAR_FILE_NAME", "booking.ics")
	v.SetDefault("BOOKING_TIMEZONE", "UTC")
	v.SetDefault("BOOKING_WINDOW_DAYS", 20)
	v.SetDefault("BOOKING_OWNER_NAME", "the site owner")
	v.SetDefault("BOOKING_ALLOW_ORIGIN", "*")
	v.SetDefault("RATE_LIMIT_CONFIRM_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT_CONFIRM_BURST", 3)
}

// splitList parses a comma separated env value, dropping empty items
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
