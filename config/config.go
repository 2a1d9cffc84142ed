package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Tariff     TariffConfig     `mapstructure:"tariff"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Devices    DevicesConfig    `mapstructure:"devices"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// TariffConfig drives the settlement calculator. Amounts are VND,
// CO2 is tracked in grams so everything stays integer.
type TariffConfig struct {
	CupDeposit       int64         `mapstructure:"cup_deposit"`
	PenaltyPerHour   int64         `mapstructure:"penalty_per_hour"`
	BasePoints       int64         `mapstructure:"base_points"`
	EarlyBonusPoints int64         `mapstructure:"early_bonus_points"`
	EarlyWindow      time.Duration `mapstructure:"early_window"`
	CupLoanPeriod    time.Duration `mapstructure:"cup_loan_period"`
	BikeFarePerHour  int64         `mapstructure:"bike_fare_per_hour"`
	PointsPerKmX10   int64         `mapstructure:"points_per_km_x10"` // points per 10 km
	CO2GramsPerKm    int64         `mapstructure:"co2_grams_per_km"`
}

// GatewayConfig holds the external payment processor settings.
type GatewayConfig struct {
	PayURL       string        `mapstructure:"pay_url"`
	ReturnURL    string        `mapstructure:"return_url"`
	TerminalCode string        `mapstructure:"terminal_code"`
	HashSecret   string        `mapstructure:"hash_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	AllowedIPs   []string      `mapstructure:"allowed_ips"` // callback source allowlist, release mode only
}

// WithdrawalConfig bounds withdrawal requests.
type WithdrawalConfig struct {
	MinAmount       int64 `mapstructure:"min_amount"`
	MaxAmount       int64 `mapstructure:"max_amount"`
	DailyCount      int64 `mapstructure:"daily_count"`
	ReviewThreshold int64 `mapstructure:"review_threshold"` // above this amount -> needs_review
}

// DevicesConfig holds IoT signaling settings.
type DevicesConfig struct {
	SignalURL string        `mapstructure:"signal_url"` // base URL of the lock/unlock relay
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyHash   string        `mapstructure:"key_hash"` // argon2id hash of the webhook pre-shared key
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SMT_.
// Nested keys use underscore: SMT_DATABASE_HOST, SMT_GATEWAY_HASH_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "sipmart")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "sipmart")
	v.SetDefault("tariff.cup_deposit", 30000)
	v.SetDefault("tariff.penalty_per_hour", 2000)
	v.SetDefault("tariff.base_points", 10)
	v.SetDefault("tariff.early_bonus_points", 5)
	v.SetDefault("tariff.early_window", "6h")
	v.SetDefault("tariff.cup_loan_period", "48h")
	v.SetDefault("tariff.bike_fare_per_hour", 15000)
	v.SetDefault("tariff.points_per_km_x10", 10)
	v.SetDefault("tariff.co2_grams_per_km", 150)
	v.SetDefault("gateway.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("gateway.return_url", "http://localhost:8080/api/v1/payments/callback")
	v.SetDefault("gateway.terminal_code", "")
	v.SetDefault("gateway.hash_secret", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.allowed_ips", []string{})
	v.SetDefault("withdrawal.min_amount", 50000)
	v.SetDefault("withdrawal.max_amount", 5000000)
	v.SetDefault("withdrawal.daily_count", 3)
	v.SetDefault("withdrawal.review_threshold", 2000000)
	v.SetDefault("devices.signal_url", "")
	v.SetDefault("devices.timeout", "5s")
	v.SetDefault("devices.key_hash", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SMT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
