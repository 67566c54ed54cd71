package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the bridge processes.
// All values must come from env (or an env-file loaded in main via godotenv).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Switch SwitchConfig
	Bridge BridgeConfig
	Media  MediaConfig
	API    APIConfig
	Auth   AuthConfig
	DB     DBConfig
	Redis  RedisConfig
}

type AppConfig struct {
	Env string
}

// SwitchConfig locates the FreeSWITCH event socket this process controls.
type SwitchConfig struct {
	Host     string
	Port     int
	Password string

	// OriginateTimeout bounds each outbound dial attempt.
	OriginateTimeout time.Duration
}

type BridgeConfig struct {
	// ListenAddr is where the server accepts switch-initiated
	// event-socket connections (outbound socket mode).
	ListenAddr string

	// CustomerURI is the default dial target for the dialer program.
	CustomerURI string

	// AgentPool is a comma-separated list of agent dial targets,
	// each optionally weighted: "user/1001@3,user/1002".
	AgentPool string

	CallerIDNumber string
	CallerIDName   string

	// AgentLineLimit caps concurrent sessions per agent when redis is
	// configured.
	AgentLineLimit int
	LineSlotTTL    time.Duration
}

type MediaConfig struct {
	GreetingSound     string
	HoldMusic         string
	ConferenceProfile string
	RecordingDir      string
}

type APIConfig struct {
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	// Operator credentials accepted by the token endpoint.
	OperatorName     string
	OperatorPassword string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Load reads the shared configuration and validates the core sections.
// Role-specific checks (ValidateServer, ValidateDialer) are applied by the
// respective mains.
func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = envOr("APP_ENV", "local")

	c.Switch.Host = envOr("SWITCH_HOST", "127.0.0.1")
	{
		n, err := intOr("SWITCH_PORT", 8021)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Switch.Port = n
	}
	c.Switch.Password = os.Getenv("SWITCH_PASSWORD")
	{
		d, err := durationOr("ORIGINATE_TIMEOUT", 30*time.Second)
		d, parseErrs = appendParseDurErr(parseErrs, d, err)
		c.Switch.OriginateTimeout = d
	}

	c.Bridge.ListenAddr = envOr("BRIDGE_LISTEN_ADDR", ":8084")
	c.Bridge.CustomerURI = strings.TrimSpace(os.Getenv("CUSTOMER_URI"))
	c.Bridge.AgentPool = strings.TrimSpace(os.Getenv("AGENT_POOL"))
	c.Bridge.CallerIDNumber = envOr("CALLER_ID_NUMBER", "0000000000")
	c.Bridge.CallerIDName = envOr("CALLER_ID_NAME", "callbridge")
	{
		n, err := intOr("AGENT_LINE_LIMIT", 1)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Bridge.AgentLineLimit = n
	}
	{
		d, err := durationOr("LINE_SLOT_TTL", 2*time.Minute)
		d, parseErrs = appendParseDurErr(parseErrs, d, err)
		c.Bridge.LineSlotTTL = d
	}

	c.Media.GreetingSound = envOr("GREETING_SOUND", "ivr/ivr-welcome.wav")
	c.Media.HoldMusic = envOr("HOLD_MUSIC", "local_stream://moh")
	c.Media.ConferenceProfile = envOr("CONFERENCE_PROFILE", "default")
	c.Media.RecordingDir = envOr("RECORDING_DIR", "/var/lib/freeswitch/recordings")

	{
		n, err := intOr("API_PORT", 8090)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.API.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = envOr("JWT_ISSUER", "callbridge")
	{
		d, err := durationOr("ACCESS_TOKEN_TTL", 30*time.Minute)
		d, parseErrs = appendParseDurErr(parseErrs, d, err)
		c.Auth.AccessTokenTTL = d
	}
	c.Auth.OperatorName = strings.TrimSpace(os.Getenv("OPERATOR_NAME"))
	c.Auth.OperatorPassword = os.Getenv("OPERATOR_PASSWORD")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := intOr("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := intOr("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := intOr("REDIS_DB", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the sections every process needs.
func (c Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}

	if c.Switch.Host == "" {
		errs = append(errs, errors.New("SWITCH_HOST is required"))
	}
	if c.Switch.Port <= 0 || c.Switch.Port > 65535 {
		errs = append(errs, fmt.Errorf("SWITCH_PORT must be a valid port, got %d", c.Switch.Port))
	}
	if c.Switch.Password == "" {
		errs = append(errs, errors.New("SWITCH_PASSWORD is required"))
	}
	if c.Switch.OriginateTimeout <= 0 {
		errs = append(errs, errors.New("ORIGINATE_TIMEOUT must be positive"))
	}

	if c.Bridge.AgentPool == "" {
		errs = append(errs, errors.New("AGENT_POOL is required"))
	}
	if c.Bridge.AgentLineLimit <= 0 {
		errs = append(errs, errors.New("AGENT_LINE_LIMIT must be positive"))
	}

	if c.Media.GreetingSound == "" {
		errs = append(errs, errors.New("GREETING_SOUND is required"))
	}
	if c.Media.RecordingDir == "" {
		errs = append(errs, errors.New("RECORDING_DIR is required"))
	}

	if c.StorageEnabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.LineCapsEnabled() {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Bridge.LineSlotTTL <= 0 {
			errs = append(errs, errors.New("LINE_SLOT_TTL must be positive"))
		}
	}

	return joinErrors(errs)
}

// ValidateServer adds the checks the server process needs on top of Validate.
func (c Config) ValidateServer() error {
	var errs []error

	if c.Bridge.ListenAddr == "" {
		errs = append(errs, errors.New("BRIDGE_LISTEN_ADDR is required"))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("API_PORT must be a valid port, got %d", c.API.Port))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Auth.OperatorName == "" || c.Auth.OperatorPassword == "" {
		errs = append(errs, errors.New("OPERATOR_NAME and OPERATOR_PASSWORD are required"))
	}
	if c.IsProduction() && c.Auth.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISSUER is required in production"))
	}

	return joinErrors(errs)
}

// ValidateDialer adds the checks the dialer process needs on top of Validate.
func (c Config) ValidateDialer() error {
	if c.Bridge.CustomerURI == "" {
		return errors.New("CUSTOMER_URI is required")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// StorageEnabled reports whether CDRs go to Postgres. Without DB_HOST the
// in-memory store is used.
func (c Config) StorageEnabled() bool {
	return c.DB.Host != ""
}

// LineCapsEnabled reports whether per-agent line caps are enforced via redis.
func (c Config) LineCapsEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) SwitchAddr() string {
	return fmt.Sprintf("%s:%d", c.Switch.Host, c.Switch.Port)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.API.Port)
}

func (c Config) PostgresDSN() string {
	sslMode := c.DB.SSLMode
	if sslMode == "" {
		// Validate only allows this outside production.
		sslMode = "disable"
	}
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		sslMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intOr(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 2m, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendParseDurErr(errs []error, d time.Duration, err error) (time.Duration, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
