package util

import (
	"os"
	"testing"
)

func TestConfigConstants(t *testing.T) {
	if Name != "glyptodon" {
		t.Errorf("Expected Name 'glyptodon', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  sslDomain: example.com
  autoTls: true
  blockedHosts:
    - spam.example
    - worse.example
  recursionLimit: 42
  crawlMaxPages: 5
  crawlMaxItems: 50
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "example.com" {
		t.Errorf("Expected SslDomain 'example.com', got '%s'", config.Conf.SslDomain)
	}

	if !config.Conf.AutoTls {
		t.Error("Expected AutoTls to be true")
	}

	if len(config.Conf.BlockedHosts) != 2 || config.Conf.BlockedHosts[0] != "spam.example" {
		t.Errorf("Expected two blocked hosts, got %v", config.Conf.BlockedHosts)
	}

	if config.Conf.RecursionLimit != 42 {
		t.Errorf("Expected RecursionLimit 42, got %d", config.Conf.RecursionLimit)
	}

	if config.Conf.CrawlMaxPages != 5 {
		t.Errorf("Expected CrawlMaxPages 5, got %d", config.Conf.CrawlMaxPages)
	}

	if config.Conf.CrawlMaxItems != 50 {
		t.Errorf("Expected CrawlMaxItems 50, got %d", config.Conf.CrawlMaxItems)
	}
}

func TestReadConfDefaults(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  sslDomain: example.com
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.RecursionLimit != 100 {
		t.Errorf("Expected default RecursionLimit 100, got %d", config.Conf.RecursionLimit)
	}
	if config.Conf.CrawlMaxPages != 10 {
		t.Errorf("Expected default CrawlMaxPages 10, got %d", config.Conf.CrawlMaxPages)
	}
	if config.Conf.CrawlMaxItems != 100 {
		t.Errorf("Expected default CrawlMaxItems 100, got %d", config.Conf.CrawlMaxItems)
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  sslDomain: example.com
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	os.Setenv("GLYPTODON_HOST", "192.168.1.1")
	os.Setenv("GLYPTODON_HTTPPORT", "8080")
	os.Setenv("GLYPTODON_SSLDOMAIN", "test.example.com")
	os.Setenv("GLYPTODON_AUTOTLS", "true")
	os.Setenv("GLYPTODON_BLOCKED_HOSTS", "a.example,b.example")
	os.Setenv("GLYPTODON_RECURSION_LIMIT", "7")

	defer func() {
		os.Unsetenv("GLYPTODON_HOST")
		os.Unsetenv("GLYPTODON_HTTPPORT")
		os.Unsetenv("GLYPTODON_SSLDOMAIN")
		os.Unsetenv("GLYPTODON_AUTOTLS")
		os.Unsetenv("GLYPTODON_BLOCKED_HOSTS")
		os.Unsetenv("GLYPTODON_RECURSION_LIMIT")
	}()

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Environment variables should override YAML values
	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "test.example.com" {
		t.Errorf("Expected SslDomain 'test.example.com' from env, got '%s'", config.Conf.SslDomain)
	}

	if !config.Conf.AutoTls {
		t.Error("Expected AutoTls to be true from env")
	}

	if len(config.Conf.BlockedHosts) != 2 || config.Conf.BlockedHosts[1] != "b.example" {
		t.Errorf("Expected blocked hosts from env, got %v", config.Conf.BlockedHosts)
	}

	if config.Conf.RecursionLimit != 7 {
		t.Errorf("Expected RecursionLimit 7 from env, got %d", config.Conf.RecursionLimit)
	}
}

func TestReadConfInvalidYaml(t *testing.T) {
	invalidYaml := `
conf:
  host: 127.0.0.1
  httpPort: not_a_number
  invalid yaml structure
`
	err := os.WriteFile("config.yaml", []byte(invalidYaml), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	_, err = ReadConf()
	if err == nil {
		t.Error("Expected error when parsing invalid YAML")
	}
}
