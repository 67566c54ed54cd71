package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:    AppConfig{Env: "local"},
		Switch: SwitchConfig{Host: "127.0.0.1", Port: 8021, Password: "ClueCon", OriginateTimeout: 30 * time.Second},
		Bridge: BridgeConfig{ListenAddr: ":8084", AgentPool: "user/1001", AgentLineLimit: 1, LineSlotTTL: time.Minute},
		Media:  MediaConfig{GreetingSound: "ivr/ivr-welcome.wav", ConferenceProfile: "default", RecordingDir: "/tmp/recordings"},
		API:    APIConfig{Port: 8090},
		Auth:   AuthConfig{JWTSecret: "secret", JWTIssuer: "callbridge", AccessTokenTTL: time.Hour, OperatorName: "op", OperatorPassword: "pw"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "SWITCH_PASSWORD") {
		t.Fatalf("expected SWITCH_PASSWORD error, got %v", err)
	}
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.StorageEnabled() {
		t.Fatalf("expected memory storage without DB_HOST")
	}
	if c.LineCapsEnabled() {
		t.Fatalf("expected line caps disabled without REDIS_HOST")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbridge", SSLMode: ""}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidateServer_RequiresOperatorCredentials(t *testing.T) {
	c := validConfig()
	c.Auth.OperatorPassword = ""
	if err := c.ValidateServer(); err == nil {
		t.Fatalf("expected error for missing operator credentials")
	}
}

func TestValidateDialer_RequiresCustomerURI(t *testing.T) {
	c := validConfig()
	if err := c.ValidateDialer(); err == nil {
		t.Fatalf("expected error for missing CUSTOMER_URI")
	}
	c.Bridge.CustomerURI = "user/1000"
	if err := c.ValidateDialer(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestSwitchAddr(t *testing.T) {
	c := validConfig()
	if got := c.SwitchAddr(); got != "127.0.0.1:8021" {
		t.Fatalf("unexpected switch addr %q", got)
	}
}

func TestPostgresDSN_DefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callbridge"}
	if !strings.Contains(c.PostgresDSN(), "sslmode=disable") {
		t.Fatalf("expected sslmode default in dsn")
	}
}
