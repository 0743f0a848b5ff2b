package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/greenbasket/storefront/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "storefront.json"

	// DefaultBaseURL is the marketplace API on a development machine.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout bounds every API request.
	DefaultTimeout = "15s"

	// DefaultCartKey is the storage key holding the persisted cart.
	DefaultCartKey = "cart"

	// DefaultStorageDir is where the file driver keeps persisted values.
	DefaultStorageDir = ".storefront"

	// DefaultGatewayPort is the default gateway port.
	DefaultGatewayPort = 8080

	// DefaultGatewayHost is the default gateway host.
	DefaultGatewayHost = "localhost"

	// DefaultContextTTL is how long an idle browser context is kept.
	DefaultContextTTL = "30m"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STOREFRONT_"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverS3     = "s3"
)

// Config represents the complete storefront.json configuration.
type Config struct {
	// API configures the marketplace REST client.
	API APIConfig `json:"api"`

	// Storage selects the durable client-state backend.
	Storage StorageConfig `json:"storage"`

	// Cart contains cart persistence settings.
	Cart CartConfig `json:"cart"`

	// Gateway contains the browser-facing gateway settings.
	Gateway GatewayConfig `json:"gateway"`

	// Log contains logger settings.
	Log LogConfig `json:"log"`

	// Telemetry toggles metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// APIConfig configures the marketplace API client.
type APIConfig struct {
	// BaseURL is the API origin, without the /api prefix.
	BaseURL string `json:"baseURL,omitempty"`

	// Timeout is a duration string (e.g., "15s").
	Timeout string `json:"timeout,omitempty"`
}

// StorageConfig selects and configures a storage driver.
type StorageConfig struct {
	// Driver is one of memory, file, redis, s3.
	Driver string `json:"driver,omitempty"`

	// Dir is the directory used by the file driver.
	Dir string `json:"dir,omitempty"`

	// Prefix namespaces every key written by this client.
	Prefix string `json:"prefix,omitempty"`

	// Redis configures the redis driver.
	Redis RedisConfig `json:"redis,omitempty"`

	// S3 configures the s3 driver.
	S3 S3Config `json:"s3,omitempty"`
}

// RedisConfig configures the redis storage driver.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// S3Config configures the s3 storage driver.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`
}

// CartConfig contains cart persistence settings.
type CartConfig struct {
	// Key is the storage key the cart is persisted under.
	Key string `json:"key,omitempty"`
}

// GatewayConfig contains the browser-facing gateway settings.
type GatewayConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// SessionSecret signs the browser-context cookie.
	SessionSecret string `json:"sessionSecret,omitempty"`

	// ContextTTL is how long an idle browser context is kept.
	ContextTTL string `json:"contextTTL,omitempty"`

	// AllowedOrigins lists origins accepted on the websocket endpoint.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	Metrics bool `json:"metrics,omitempty"`
	Tracing bool `json:"tracing,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Dir:    DefaultStorageDir,
		},
		Cart: CartConfig{
			Key: DefaultCartKey,
		},
		Gateway: GatewayConfig{
			Host:       DefaultGatewayHost,
			Port:       DefaultGatewayPort,
			ContextTTL: DefaultContextTTL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for storefront.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No storefront.json found in " + filepath.Dir(path))
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse storefront.json: " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads storefront.json from dir when present, falls back to
// defaults when it is absent, then applies .env and environment overrides.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		var se *errors.StorefrontError
		if !stderrors.As(err, &se) || se.Code != "E141" {
			return nil, err
		}
		cfg = New()
	}

	// A missing .env is normal; only the process environment applies then.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from STOREFRONT_* variables using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("E121").
				WithDetail(EnvPrefix + name + " must be an integer, got " + strconv.Quote(v))
		}
		*dst = n
		return nil
	}

	str("API_URL", &c.API.BaseURL)
	str("API_TIMEOUT", &c.API.Timeout)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("STORAGE_PREFIX", &c.Storage.Prefix)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("S3_BUCKET", &c.Storage.S3.Bucket)
	str("S3_REGION", &c.Storage.S3.Region)
	str("CART_KEY", &c.Cart.Key)
	str("GATEWAY_HOST", &c.Gateway.Host)
	str("SESSION_SECRET", &c.Gateway.SessionSecret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		c.Gateway.AllowedOrigins = splitList(v)
	}
	if err := integer("REDIS_DB", &c.Storage.Redis.DB); err != nil {
		return err
	}
	if err := integer("GATEWAY_PORT", &c.Gateway.Port); err != nil {
		return err
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == "" {
		c.API.Timeout = DefaultTimeout
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}
	if c.Cart.Key == "" {
		c.Cart.Key = DefaultCartKey
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultGatewayHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultGatewayPort
	}
	if c.Gateway.ContextTTL == "" {
		c.Gateway.ContextTTL = DefaultContextTTL
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return errors.New("E121").
			WithDetail("api.baseURL must start with http:// or https://, got " + strconv.Quote(c.API.BaseURL))
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return errors.New("E121").WithDetail("api.timeout: " + err.Error())
	}
	if _, err := time.ParseDuration(c.Gateway.ContextTTL); err != nil {
		return errors.New("E121").WithDetail("gateway.contextTTL: " + err.Error())
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverFile:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("E121").WithDetail("storage.redis.addr is required for the redis driver")
		}
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("E121").WithDetail("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return errors.New("E121").
			WithDetail("storage.driver must be one of memory, file, redis, s3; got " + strconv.Quote(c.Storage.Driver))
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return errors.New("E121").
			WithDetail("Port must be between 0 and 65535")
	}
	return nil
}

// APITimeout returns the parsed API timeout.
func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ContextTTL returns the parsed gateway context TTL.
func (c *Config) ContextTTL() time.Duration {
	d, err := time.ParseDuration(c.Gateway.ContextTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GatewayAddress returns the address string for the gateway.
func (c *Config) GatewayAddress() string {
	return c.Gateway.Host + ":" + strconv.Itoa(c.Gateway.Port)
}
