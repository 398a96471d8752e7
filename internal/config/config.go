package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Routing  RoutingConfig  `mapstructure:"routing"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	AllowOrigins string `mapstructure:"alloworigins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	BucketName      string `mapstructure:"bucketname"`
	UseSSL          bool   `mapstructure:"usessl"`
	Enabled         bool   `mapstructure:"enabled"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireHour int    `mapstructure:"expirehour"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// GeocoderConfig selects and tunes the address lookup service.
type GeocoderConfig struct {
	// http, dummy or null
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"baseurl"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"ratepersec"`
	CacheTTL    time.Duration `mapstructure:"cachettl"`
	SharedCache bool          `mapstructure:"sharedcache"`
}

// RoutingConfig holds the business parameters of derivation, reassignment and claims.
type RoutingConfig struct {
	GeocodingEnabled  bool          `mapstructure:"geocodingenabled"`
	AllPolygonsCode   string        `mapstructure:"allpolygonscode"`
	AmbitTreeLevels   int           `mapstructure:"ambittreelevels"` // for groups created without one
	CoordinatorLevel  int           `mapstructure:"coordinatorlevel"`
	MaxClaims         int           `mapstructure:"maxclaims"`
	ClaimDaysLimit    int           `mapstructure:"claimdayslimit"`
	AlarmScanInterval time.Duration `mapstructure:"alarmscaninterval"`
	RebuildLockTTL    time.Duration `mapstructure:"rebuildlockttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.alloworigins", "http://localhost:3000,http://localhost:5173")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "routing")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.accesskeyid", "minioadmin")
	v.SetDefault("minio.secretaccesskey", "minioadmin")
	v.SetDefault("minio.bucketname", "routing")
	v.SetDefault("minio.usessl", false)
	v.SetDefault("minio.enabled", true)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expirehour", 24)

	v.SetDefault("log.mode", "development")

	v.SetDefault("geocoder.provider", "null")
	v.SetDefault("geocoder.baseurl", "http://localhost:8090/geocoder")
	v.SetDefault("geocoder.timeout", 5*time.Second)
	v.SetDefault("geocoder.ratepersec", 10.0)
	v.SetDefault("geocoder.cachettl", 24*time.Hour)
	v.SetDefault("geocoder.sharedcache", true)

	v.SetDefault("routing.geocodingenabled", true)
	v.SetDefault("routing.allpolygonscode", "*")
	v.SetDefault("routing.ambittreelevels", 1)
	v.SetDefault("routing.coordinatorlevel", 1)
	v.SetDefault("routing.maxclaims", 3)
	v.SetDefault("routing.claimdayslimit", 60)
	v.SetDefault("routing.alarmscaninterval", 5*time.Minute)
	v.SetDefault("routing.rebuildlockttl", 30*time.Second)
}

// Load reads an optional .env file and the environment. GEOCODER_PROVIDER
// overrides geocoder.provider, ROUTING_MAXCLAIMS overrides routing.maxclaims.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Geocoder.Provider {
	case "http", "dummy", "null":
	default:
		return fmt.Errorf("unknown geocoder provider %q", c.Geocoder.Provider)
	}
	if c.Routing.MaxClaims < 1 {
		return fmt.Errorf("routing.maxclaims must be positive, got %d", c.Routing.MaxClaims)
	}
	if c.Routing.AmbitTreeLevels < 0 || c.Routing.CoordinatorLevel < 0 {
		return fmt.Errorf("routing tree levels must not be negative")
	}
	return nil
}
