package cfg

type Cfg struct {
	// Sitemap configuration
	SitemapConfig string
	BaseURL       string
	OutputDir     string

	// Content source
	Source       string
	DBPath       string
	FeedURL      string
	ImageLimit   int
	FetchTimeout int

	// Result cache
	Cache         string
	CacheDBPath   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	Once              bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

const (
	SourceSQLite = "sqlite"
	SourceFeed   = "feed"

	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)
