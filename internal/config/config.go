package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/markup"
	"github.com/totegamma/logbook/internal/search"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	Name    string `yaml:"name"`
	FQDN    string `yaml:"fqdn"`
	Version string `yaml:"version"`
}

type Server struct {
	Listen            string        `yaml:"listen"`
	PostgresDsn       string        `yaml:"postgresDsn"`
	RedisAddr         string        `yaml:"redisAddr"`
	RedisPassword     string        `yaml:"redisPassword"`
	RedisDB           int           `yaml:"redisDB"`
	MemcachedAddr     string        `yaml:"memcachedAddr"`
	Elasticsearch     Elasticsearch `yaml:"elasticsearch"`
	EnableTrace       bool          `yaml:"enableTrace"`
	TraceEndpoint     string        `yaml:"traceEndpoint"`
	Timezone          string        `yaml:"timezone"`
	SearchSize        int           `yaml:"searchSize"`
	SearchTimeout     time.Duration `yaml:"searchTimeout"`
	MaxAttachmentSize int64         `yaml:"maxAttachmentSize"`
	MarkupProcessor   string        `yaml:"markupProcessor"`
}

type Elasticsearch struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// Enabled reports whether a cluster is configured. Without one the in-process index is used.
func (e Elasticsearch) Enabled() bool {
	return len(e.Addresses) > 0
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode %s", path)
	}

	config.applyDefaults()

	if _, err := config.Location(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.NodeInfo.Name == "" {
		c.NodeInfo.Name = "logbook"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.Elasticsearch.Index == "" {
		c.Server.Elasticsearch.Index = search.DefaultIndex
	}
	if c.Server.SearchSize <= 0 {
		c.Server.SearchSize = search.DefaultSize
	}
	if c.Server.SearchTimeout <= 0 {
		c.Server.SearchTimeout = search.DefaultTimeout
	}
	if c.Server.Timezone == "" {
		c.Server.Timezone = "Local"
	}
	c.Server.MarkupProcessor = strings.ToLower(strings.TrimSpace(c.Server.MarkupProcessor))
	if c.Server.MarkupProcessor != markup.NameCommonmark {
		c.Server.MarkupProcessor = markup.NameNone
	}
}

// Location is the zone search timestamps are interpreted in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", c.Server.Timezone)
	}
	return loc, nil
}

// SearchConfig returns the fixed parameters of every search request.
func (c Config) SearchConfig() (search.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return search.Config{}, err
	}
	return search.Config{
		Index:    c.Server.Elasticsearch.Index,
		Size:     c.Server.SearchSize,
		Timeout:  c.Server.SearchTimeout,
		Location: loc,
	}, nil
}

// Node is the description served on the health endpoint.
func (c Config) Node() domain.Config {
	return domain.Config{
		Name:            c.NodeInfo.Name,
		Version:         c.NodeInfo.Version,
		FQDN:            c.NodeInfo.FQDN,
		IndexName:       c.Server.Elasticsearch.Index,
		MarkupProcessor: c.Server.MarkupProcessor,
	}
}
