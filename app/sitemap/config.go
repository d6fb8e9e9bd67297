package sitemap

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SubmissionToken is replaced by the published sitemap URL in endpoint templates.
const SubmissionToken = "{sitemap_url}"

const slugToken = "{slug}"

var ErrInvalidConfig = errors.New("invalid sitemap configuration")

type Config struct {
	BaseURL           string           `yaml:"base_url" json:"base_url"`
	MaxURLsPerSitemap int              `yaml:"max_urls_per_sitemap" json:"max_urls_per_sitemap"`
	DefaultChangeFreq ChangeFreq       `yaml:"default_changefreq" json:"default_changefreq"`
	DefaultPriority   float64          `yaml:"default_priority" json:"default_priority"`
	IncludeImages     bool             `yaml:"include_images" json:"include_images"`
	IncludeLastmod    bool             `yaml:"include_lastmod" json:"include_lastmod"`
	CacheTTLMinutes   int              `yaml:"cache_ttl_minutes" json:"cache_ttl_minutes"`
	Submission        SubmissionConfig `yaml:"search_engine_submission" json:"search_engine_submission"`

	Filename          string       `yaml:"filename" json:"filename"`
	IndexFilename     string       `yaml:"index_filename" json:"index_filename"`
	PageSize          int          `yaml:"page_size" json:"page_size"`
	MaxPagesPerFamily int          `yaml:"max_pages_per_family" json:"max_pages_per_family"`
	Scope             string       `yaml:"scope" json:"scope"`
	Routes            Routes       `yaml:"routes" json:"routes"`
	StaticPages       []StaticPage `yaml:"static_pages" json:"static_pages"`
	Weights           Weights      `yaml:"weights" json:"weights"`
}

type SubmissionConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Endpoints      []string `yaml:"endpoints" json:"endpoints"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
}

func (s SubmissionConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Routes are path templates relative to BaseURL; all but Index contain {slug}.
type Routes struct {
	Index    string `yaml:"index" json:"index"`
	Post     string `yaml:"post" json:"post"`
	Category string `yaml:"category" json:"category"`
	Author   string `yaml:"author" json:"author"`
	Tag      string `yaml:"tag" json:"tag"`
}

type StaticPage struct {
	Path       string     `yaml:"path" json:"path"`
	ChangeFreq ChangeFreq `yaml:"changefreq" json:"changefreq,omitempty"`
	Priority   *float64   `yaml:"priority" json:"priority,omitempty"`
}

// Weights holds the tunable constants of the priority/changefreq calculator.
type Weights struct {
	PostBase        float64 `yaml:"post_base" json:"post_base"`
	HighViews       int     `yaml:"high_views" json:"high_views"`
	VeryHighViews   int     `yaml:"very_high_views" json:"very_high_views"`
	PopularityBonus float64 `yaml:"popularity_bonus" json:"popularity_bonus"`
	FreshDays       int     `yaml:"fresh_days" json:"fresh_days"`
	RecentDays      int     `yaml:"recent_days" json:"recent_days"`
	AgingDays       int     `yaml:"aging_days" json:"aging_days"`
	FreshBonus      float64 `yaml:"fresh_bonus" json:"fresh_bonus"`
	RecentBonus     float64 `yaml:"recent_bonus" json:"recent_bonus"`
	ImageBonus      float64 `yaml:"image_bonus" json:"image_bonus"`

	CategoryBase     float64 `yaml:"category_base" json:"category_base"`
	CategoryActive   int     `yaml:"category_active" json:"category_active"`
	CategoryBusy     int     `yaml:"category_busy" json:"category_busy"`
	CategoryVeryBusy int     `yaml:"category_very_busy" json:"category_very_busy"`
	CategoryBonus    float64 `yaml:"category_bonus" json:"category_bonus"`

	AuthorPriority float64 `yaml:"author_priority" json:"author_priority"`
	TagPriority    float64 `yaml:"tag_priority" json:"tag_priority"`
	IndexPriority  float64 `yaml:"index_priority" json:"index_priority"`
}

func DefaultWeights() Weights {
	return Weights{
		PostBase:        0.6,
		HighViews:       1000,
		VeryHighViews:   10000,
		PopularityBonus: 0.1,
		FreshDays:       7,
		RecentDays:      30,
		AgingDays:       90,
		FreshBonus:      0.1,
		RecentBonus:     0.05,
		ImageBonus:      0.05,

		CategoryBase:     0.7,
		CategoryActive:   5,
		CategoryBusy:     20,
		CategoryVeryBusy: 50,
		CategoryBonus:    0.1,

		AuthorPriority: 0.6,
		TagPriority:    0.4,
		IndexPriority:  0.8,
	}
}

// DefaultConfig returns every default except BaseURL, which has none.
func DefaultConfig() Config {
	return Config{
		MaxURLsPerSitemap: 45000,
		DefaultChangeFreq: ChangeFreqWeekly,
		DefaultPriority:   0.5,
		IncludeImages:     true,
		IncludeLastmod:    true,
		CacheTTLMinutes:   60,
		Submission: SubmissionConfig{
			Endpoints:      []string{},
			TimeoutSeconds: 10,
		},
		Filename:          "sitemap.xml",
		IndexFilename:     "sitemap-index.xml",
		PageSize:          100,
		MaxPagesPerFamily: 10000,
		Scope:             "all",
		Routes: Routes{
			Index:    "/blog",
			Post:     "/blog/{slug}",
			Category: "/blog/category/{slug}",
			Author:   "/blog/author/{slug}",
			Tag:      "/blog/tag/{slug}",
		},
		StaticPages: []StaticPage{},
		Weights:     DefaultWeights(),
	}
}

// LoadConfig reads a YAML settings file over the defaults. Environment
// variables in the file are expanded. The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return cfg, nil
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// PublicURL joins BaseURL and a filename.
func (c Config) PublicURL(filename string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + filename
}

// CacheKey identifies the generation scope; configs producing different
// output never share a key.
func (c Config) CacheKey() string {
	data, _ := json.Marshal(c)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("sitemap:%s:%x", c.Scope, hash[:8])
}

func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if !isAbsoluteURL(c.BaseURL) {
		return fmt.Errorf("base URL must be absolute: %s", c.BaseURL)
	}

	if c.MaxURLsPerSitemap < 1 || c.MaxURLsPerSitemap > MaxURLsPerFile {
		return fmt.Errorf("max URLs per sitemap must be between 1 and %d, got %d", MaxURLsPerFile, c.MaxURLsPerSitemap)
	}
	if !c.DefaultChangeFreq.Valid() {
		return fmt.Errorf("invalid default changefreq: %q", c.DefaultChangeFreq)
	}
	if !inUnitRange(c.DefaultPriority) {
		return fmt.Errorf("default priority must be between 0 and 1, got %v", c.DefaultPriority)
	}
	if c.CacheTTLMinutes < 1 {
		return fmt.Errorf("cache TTL must be at least 1 minute, got %d", c.CacheTTLMinutes)
	}

	positiveFields := []struct {
		name  string
		value int
	}{
		{"page size", c.PageSize},
		{"max pages per family", c.MaxPagesPerFamily},
		{"submission timeout (s)", c.Submission.TimeoutSeconds},
	}
	for _, field := range positiveFields {
		if field.value < 1 {
			return fmt.Errorf("%s must be positive", field.name)
		}
	}
	if c.PageSize > 1000 {
		return fmt.Errorf("page size must not exceed 1000, got %d", c.PageSize)
	}

	if c.Scope == "" {
		return fmt.Errorf("scope is required")
	}

	filenames := []namedString{
		{"filename", c.Filename},
		{"index filename", c.IndexFilename},
	}
	for _, field := range filenames {
		if field.value == "" || path.Ext(field.value) != ".xml" || strings.Contains(field.value, "/") {
			return fmt.Errorf("%s must be a plain .xml file name, got %q", field.name, field.value)
		}
	}
	if c.Filename == c.IndexFilename {
		return fmt.Errorf("filename and index filename must differ")
	}
	if numberedPattern(c.Filename).MatchString(c.IndexFilename) {
		return fmt.Errorf("index filename %q collides with numbered sitemap files of %q", c.IndexFilename, c.Filename)
	}

	slugRoutes := []namedString{
		{"post route", c.Routes.Post},
		{"category route", c.Routes.Category},
		{"author route", c.Routes.Author},
		{"tag route", c.Routes.Tag},
	}
	for _, field := range slugRoutes {
		if !strings.HasPrefix(field.value, "/") || !strings.Contains(field.value, slugToken) {
			return fmt.Errorf("%s must start with / and contain %s, got %q", field.name, slugToken, field.value)
		}
	}
	if !strings.HasPrefix(c.Routes.Index, "/") {
		return fmt.Errorf("index route must start with /, got %q", c.Routes.Index)
	}

	for i, page := range c.StaticPages {
		if !strings.HasPrefix(page.Path, "/") {
			return fmt.Errorf("static page at index %d must start with /, got %q", i, page.Path)
		}
		if page.ChangeFreq != "" && !page.ChangeFreq.Valid() {
			return fmt.Errorf("static page at index %d has invalid changefreq: %q", i, page.ChangeFreq)
		}
		if page.Priority != nil && !inUnitRange(*page.Priority) {
			return fmt.Errorf("static page at index %d priority must be between 0 and 1", i)
		}
	}

	for i, endpoint := range c.Submission.Endpoints {
		if !strings.Contains(endpoint, SubmissionToken) {
			return fmt.Errorf("submission endpoint at index %d must contain %s", i, SubmissionToken)
		}
		if !isAbsoluteURL(strings.ReplaceAll(endpoint, SubmissionToken, "x")) {
			return fmt.Errorf("submission endpoint at index %d is not an absolute URL: %s", i, endpoint)
		}
	}

	return c.Weights.validate()
}

func (w Weights) validate() error {
	// Priorities first, then bonuses.
	unitFields := []struct {
		name  string
		value float64
	}{
		{"post base", w.PostBase},
		{"category base", w.CategoryBase},
		{"author priority", w.AuthorPriority},
		{"tag priority", w.TagPriority},
		{"index priority", w.IndexPriority},
		{"popularity bonus", w.PopularityBonus},
		{"fresh bonus", w.FreshBonus},
		{"recent bonus", w.RecentBonus},
		{"image bonus", w.ImageBonus},
		{"category bonus", w.CategoryBonus},
	}
	for _, field := range unitFields {
		if !inUnitRange(field.value) {
			return fmt.Errorf("weights: %s must be between 0 and 1", field.name)
		}
	}

	// Recency must never be penalised.
	if w.RecentBonus > w.FreshBonus {
		return fmt.Errorf("weights: recent bonus must not exceed fresh bonus")
	}
	if w.FreshDays < 0 || w.FreshDays > w.RecentDays || w.RecentDays > w.AgingDays {
		return fmt.Errorf("weights: day boundaries must satisfy 0 <= fresh <= recent <= aging")
	}
	if w.HighViews < 0 || w.HighViews > w.VeryHighViews {
		return fmt.Errorf("weights: view thresholds must satisfy 0 <= high <= very high")
	}
	if w.CategoryActive < 0 || w.CategoryActive > w.CategoryBusy || w.CategoryBusy > w.CategoryVeryBusy {
		return fmt.Errorf("weights: category thresholds must satisfy 0 <= active <= busy <= very busy")
	}

	return nil
}

type namedString struct {
	name  string
	value string
}

func (c Config) clone() Config {
	out := c
	out.Submission.Endpoints = append([]string(nil), c.Submission.Endpoints...)
	out.StaticPages = append([]StaticPage(nil), c.StaticPages...)
	return out
}

// Override adjusts a copy of the generator's configuration for one run.
type Override func(*Config)

func WithMaxURLsPerSitemap(n int) Override {
	return func(c *Config) { c.MaxURLsPerSitemap = n }
}

func WithBaseURL(baseURL string) Override {
	return func(c *Config) { c.BaseURL = baseURL }
}

func WithIncludeImages(include bool) Override {
	return func(c *Config) { c.IncludeImages = include }
}

func WithIncludeLastmod(include bool) Override {
	return func(c *Config) { c.IncludeLastmod = include }
}

func WithCacheTTLMinutes(minutes int) Override {
	return func(c *Config) { c.CacheTTLMinutes = minutes }
}

// Overrides is the wire form of per-run overrides; nil fields are left alone.
type Overrides struct {
	BaseURL           *string     `json:"base_url,omitempty"`
	MaxURLsPerSitemap *int        `json:"max_urls_per_sitemap,omitempty"`
	DefaultChangeFreq *ChangeFreq `json:"default_changefreq,omitempty"`
	DefaultPriority   *float64    `json:"default_priority,omitempty"`
	IncludeImages     *bool       `json:"include_images,omitempty"`
	IncludeLastmod    *bool       `json:"include_lastmod,omitempty"`
	CacheTTLMinutes   *int        `json:"cache_ttl_minutes,omitempty"`
}

func (o Overrides) Apply(c *Config) {
	if o.BaseURL != nil {
		c.BaseURL = *o.BaseURL
	}
	if o.MaxURLsPerSitemap != nil {
		c.MaxURLsPerSitemap = *o.MaxURLsPerSitemap
	}
	if o.DefaultChangeFreq != nil {
		c.DefaultChangeFreq = *o.DefaultChangeFreq
	}
	if o.DefaultPriority != nil {
		c.DefaultPriority = *o.DefaultPriority
	}
	if o.IncludeImages != nil {
		c.IncludeImages = *o.IncludeImages
	}
	if o.IncludeLastmod != nil {
		c.IncludeLastmod = *o.IncludeLastmod
	}
	if o.CacheTTLMinutes != nil {
		c.CacheTTLMinutes = *o.CacheTTLMinutes
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
