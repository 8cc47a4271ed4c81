package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
	"strings"
)

const Name = "glyptodon"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host           string
		HttpPort       int      `yaml:"httpPort"`
		SslDomain      string   `yaml:"sslDomain"`
		AutoTls        bool     `yaml:"autoTls"`
		BlockedHosts   []string `yaml:"blockedHosts"`
		RecursionLimit int      `yaml:"recursionLimit"`
		CrawlMaxPages  int      `yaml:"crawlMaxPages"`
		CrawlMaxItems  int      `yaml:"crawlMaxItems"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnvOverrides(c)
	applyDefaults(c)

	return c, nil
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("GLYPTODON_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("GLYPTODON_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		} else {
			c.Conf.HttpPort = port
		}
	}
	if v := os.Getenv("GLYPTODON_SSLDOMAIN"); v != "" {
		c.Conf.SslDomain = v
	}
	if os.Getenv("GLYPTODON_AUTOTLS") == "true" {
		c.Conf.AutoTls = true
	}
	if v := os.Getenv("GLYPTODON_BLOCKED_HOSTS"); v != "" {
		c.Conf.BlockedHosts = strings.Split(v, ",")
	}
	if v := os.Getenv("GLYPTODON_RECURSION_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		} else {
			c.Conf.RecursionLimit = limit
		}
	}
}

func applyDefaults(c *AppConfig) {
	if c.Conf.RecursionLimit <= 0 {
		c.Conf.RecursionLimit = 100
	}
	if c.Conf.CrawlMaxPages <= 0 {
		c.Conf.CrawlMaxPages = 10
	}
	if c.Conf.CrawlMaxItems <= 0 {
		c.Conf.CrawlMaxItems = 100
	}
}
