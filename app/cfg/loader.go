package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Sitemap configuration
	SitemapConfig string `long:"sitemap-config" env:"SITEMAP_CONFIG" default:"./sitemap.yml" description:"Path to the sitemap settings file"`
	BaseURL       string `long:"base-url" env:"BASE_URL" description:"Public base URL of the site (overrides base_url in the settings file)"`
	OutputDir     string `long:"output-dir" env:"OUTPUT_DIR" description:"Directory to write sitemap files to (optional)"`

	// Content source
	Source  string `long:"source" env:"SOURCE" default:"sqlite" choice:"sqlite" choice:"feed" description:"Content source"`
	DBPath  string `long:"db-path" env:"DB_PATH" default:"./content.db" description:"SQLite content database path"`
	FeedURL string `long:"feed-url" env:"FEED_URL" description:"RSS/Atom feed URL to read content from"`

	ImageLimit   int `long:"image-limit" env:"IMAGE_LIMIT" default:"20" description:"Max article pages fetched per sync to find missing images (0 disables)"`
	FetchTimeout int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout in seconds for feed and article requests"`

	// Result cache
	Cache         string `long:"cache" env:"CACHE" default:"memory" choice:"memory" choice:"sqlite" choice:"redis" description:"Result cache backend"`
	CacheDBPath   string `long:"cache-db-path" env:"CACHE_DB_PATH" default:"./cache.db" description:"SQLite cache database path"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Sitemap regeneration interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Once              bool   `long:"once" env:"ONCE" description:"Generate once, write files, submit and exit"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Sitemap Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SitemapConfig:     raw.SitemapConfig,
		BaseURL:           raw.BaseURL,
		OutputDir:         raw.OutputDir,
		Source:            raw.Source,
		DBPath:            raw.DBPath,
		FeedURL:           raw.FeedURL,
		ImageLimit:        raw.ImageLimit,
		FetchTimeout:      raw.FetchTimeout,
		Cache:             raw.Cache,
		CacheDBPath:       raw.CacheDBPath,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Once:              raw.Once,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.Source == SourceFeed && c.FeedURL == "" {
		return fmt.Errorf("--feed-url is required when --source=feed")
	}
	if c.ImageLimit < 0 {
		return fmt.Errorf("image limit must not be negative, got %d", c.ImageLimit)
	}
	if c.FetchTimeout < 1 {
		return fmt.Errorf("fetch timeout must be positive, got %d", c.FetchTimeout)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be positive, got %d", c.SchedulerInterval)
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
