package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadConfigMergesEnvironmentOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
mq:
  driver: rabbitmq
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)

	var out struct {
		DB DBConfig `yaml:"db"`
		MQ MQConfig `yaml:"mq"`
	}
	if err := Decode("production", dir, &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.DB.Host != "db.internal" {
		t.Errorf("DB.Host = %q, expected %q", out.DB.Host, "db.internal")
	}
	if out.DB.Port != 5432 {
		t.Errorf("DB.Port = %d, expected 5432", out.DB.Port)
	}
	if out.MQ.Driver != "rabbitmq" {
		t.Errorf("MQ.Driver = %q, expected rabbitmq", out.MQ.Driver)
	}
}

func TestLoadConfigSubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: "${JWT_SECRET}"
smtp:
  password: "${SMTP_PASSWORD}"
`)
	writeFile(t, dir, "secrets.env", "JWT_SECRET=s3cret\nSMTP_PASSWORD='mail-pass'\n")

	var out struct {
		JWT  JWTConfig  `yaml:"jwt"`
		SMTP SMTPConfig `yaml:"smtp"`
	}
	if err := Decode("local", dir, &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.JWT.Secret != "s3cret" {
		t.Errorf("JWT.Secret = %q, expected s3cret", out.JWT.Secret)
	}
	if out.SMTP.Password != "mail-pass" {
		t.Errorf("SMTP.Password = %q, expected mail-pass", out.SMTP.Password)
	}
}

func TestLoadConfigMissingBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Error("expected error when base.yaml is missing")
	}
}

func TestMergeMapsKeepsSiblings(t *testing.T) {
	dst := map[string]interface{}{
		"db": map[string]interface{}{"host": "a", "port": 1},
	}
	src := map[string]interface{}{
		"db": map[string]interface{}{"host": "b"},
	}
	got := mergeMaps(dst, src)["db"].(map[string]interface{})
	if got["host"] != "b" || got["port"] != 1 {
		t.Errorf("merged db = %v", got)
	}
}
