package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  driver: mysql
  dsn: "partline:pw@tcp(10.0.0.5:3306)/partline?parseTime=true"

server:
  port: 9000
  cors_origins: ["http://localhost:3000", "http://localhost:5173"]

auth:
  secret: line-secret
  token_ttl_minutes: 15

log:
  mode: prod

trace:
  reject_after_scrap: true

idempotency:
  backend: redis
  redis_addr: 10.0.0.6:6379
  redis_db: 2
  ttl_minutes: 30

alerts:
  slack:
    token: xoxb-1
    channel: C01
  discord:
    token: ""
    channel: "42"

reports:
  snapshot_schedule: "*/15 * * * *"

tracing:
  enabled: true
  sample_ratio: 0.5
`

// clearEnv keeps developer environment overrides out of parse results.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAuthSecret, "")
	t.Setenv(EnvDatabaseDSN, "")
}

func TestParse_FullConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if !strings.Contains(cfg.Database.DSN, "10.0.0.5:3306") {
		t.Errorf("Database.DSN = %q, want host 10.0.0.5:3306", cfg.Database.DSN)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("len(Server.CORSOrigins) = %d, want 2", len(cfg.Server.CORSOrigins))
	}
	if cfg.Auth.Secret != "line-secret" {
		t.Errorf("Auth.Secret = %q, want %q", cfg.Auth.Secret, "line-secret")
	}
	if cfg.Auth.TokenTTLMinutes != 15 {
		t.Errorf("Auth.TokenTTLMinutes = %d, want 15", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.Log.Mode != "prod" {
		t.Errorf("Log.Mode = %q, want %q", cfg.Log.Mode, "prod")
	}
	if !cfg.Trace.RejectAfterScrap {
		t.Error("Trace.RejectAfterScrap = false, want true")
	}
	if cfg.Trace.EnforceChronology {
		t.Error("Trace.EnforceChronology = true, want false")
	}
	if cfg.Idempotency.Backend != "redis" || cfg.Idempotency.RedisDB != 2 || cfg.Idempotency.TTLMinutes != 30 {
		t.Errorf("Idempotency = %+v", cfg.Idempotency)
	}
	if !cfg.Alerts.Slack.Enabled() {
		t.Error("Alerts.Slack should be enabled")
	}
	if cfg.Alerts.Discord.Enabled() {
		t.Error("Alerts.Discord should be disabled without a token")
	}
	if cfg.Reports.SnapshotSchedule != "*/15 * * * *" {
		t.Errorf("Reports.SnapshotSchedule = %q", cfg.Reports.SnapshotSchedule)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestParse_Empty_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q (default)", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.DSN != "partline.db" {
		t.Errorf("Database.DSN = %q, want %q (default)", cfg.Database.DSN, "partline.db")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d (default)", cfg.Server.Port, 8000)
	}
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Errorf("Auth.TokenTTLMinutes = %d, want 60 (default)", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.Auth.Secret == "" {
		t.Error("Auth.Secret should have a default")
	}
	if cfg.Log.Mode != "dev" {
		t.Errorf("Log.Mode = %q, want %q (default)", cfg.Log.Mode, "dev")
	}
	if cfg.Idempotency.Backend != "memory" {
		t.Errorf("Idempotency.Backend = %q, want %q (default)", cfg.Idempotency.Backend, "memory")
	}
	if cfg.Idempotency.TTLMinutes != 1440 {
		t.Errorf("Idempotency.TTLMinutes = %d, want 1440 (default)", cfg.Idempotency.TTLMinutes)
	}
	if cfg.Trace.RejectAfterScrap || cfg.Trace.EnforceChronology {
		t.Error("trace policies should default to permissive")
	}
	if cfg.Tracing.SampleRatio != 1 {
		t.Errorf("Tracing.SampleRatio = %v, want 1 (default)", cfg.Tracing.SampleRatio)
	}
}

func TestParse_DriverIsLowercased(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("database:\n  driver: SQLite\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAuthSecret, "from-env")
	t.Setenv(EnvDatabaseDSN, "/var/lib/partline/line.db")

	cfg, err := Parse([]byte("auth:\n  secret: from-file\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("Auth.Secret = %q, want %q", cfg.Auth.Secret, "from-env")
	}
	if cfg.Database.DSN != "/var/lib/partline/line.db" {
		t.Errorf("Database.DSN = %q, want env value", cfg.Database.DSN)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown driver",
			yaml: "database:\n  driver: oracle\n  dsn: x\n",
			want: `database.driver "oracle"`,
		},
		{
			name: "mysql without dsn",
			yaml: "database:\n  driver: mysql\n",
			want: "database.dsn is required",
		},
		{
			name: "port out of range",
			yaml: "server:\n  port: 70000\n",
			want: "server.port 70000 is out of range",
		},
		{
			name: "redis without address",
			yaml: "idempotency:\n  backend: redis\n",
			want: "idempotency.redis_addr is required",
		},
		{
			name: "unknown idempotency backend",
			yaml: "idempotency:\n  backend: etcd\n",
			want: `idempotency.backend "etcd"`,
		},
		{
			name: "sample ratio above one",
			yaml: "tracing:\n  sample_ratio: 2\n",
			want: "tracing.sample_ratio must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	clearEnv(t)
	_, err := Parse([]byte("database:\n  driver: oracle\nidempotency:\n  backend: etcd\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "config: validation failed") {
		t.Errorf("error = %q, want validation prefix", msg)
	}
	if strings.Count(msg, ";") < 1 {
		t.Errorf("error = %q, want multiple errors joined by ';'", msg)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [broken"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	if cfg.Database.Driver != "sqlite" || cfg.Server.Port != 8000 {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "partline.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("Server.Port = %d, want 8123", cfg.Server.Port)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/partline.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestLoad_FullFixture(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("testdata/valid_full.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Trace.EnforceChronology {
		t.Error("Trace.EnforceChronology = false, want true")
	}
	if !cfg.Alerts.Discord.Enabled() {
		t.Error("Alerts.Discord should be enabled")
	}
}

func TestLoad_MinimalFixture(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("testdata/valid_minimal.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN != "partline.db" {
		t.Errorf("Database.DSN = %q, want default %q", cfg.Database.DSN, "partline.db")
	}
}

func TestLoad_BadDriverFixture(t *testing.T) {
	clearEnv(t)
	_, err := Load("testdata/bad_driver.yaml")
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "oracle") {
		t.Errorf("error = %q, want to mention driver", err.Error())
	}
}

func TestLoad_InvalidYAMLFixture(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestChannelConfig_Enabled(t *testing.T) {
	tests := []struct {
		cfg  ChannelConfig
		want bool
	}{
		{ChannelConfig{}, false},
		{ChannelConfig{Token: "t"}, false},
		{ChannelConfig{Channel: "c"}, false},
		{ChannelConfig{Token: "t", Channel: "c"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.Enabled(); got != tt.want {
			t.Errorf("%+v.Enabled() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}
