package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	SQLite  SQLiteConfig
	Milvus  MilvusConfig
	LLM     LLMConfig
	Docs    DocsConfig
	Web     WebConfig
	Routing RoutingConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type DocsConfig struct {
	BaseURL    string
	Sites      []string
	MaxResults int
	TimeoutSec int
}

type WebConfig struct {
	SerpAPIKey string
	MaxResults int
	TimeoutSec int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// RoutingConfig is the declarative strategy configuration: which sources a
// strategy consults, in what order, and under what thresholds/timeouts. It
// is loaded once at startup and may be hot-reloaded; in-flight requests keep
// the snapshot they started with.
type RoutingConfig struct {
	GlobalTimeoutMS    int
	RaceThreshold      int
	RaceGraceMS        int
	AdaptiveEnabled    bool
	DominanceThreshold float64
	DefaultAccuracy    float64
	ConflictThreshold  float64
	CombineThreshold   float64
	Sequential         map[string][]SequentialStep
	Parallel           ParallelConfig
	TieBreaker         TieBreakerWeights
	Authority          map[string]int
	Classifier         ClassifierConfig
}

// SequentialStep is one stage of a sequential cascade: query Source with
// TimeoutMS; stop the cascade once confidence reaches Threshold.
type SequentialStep struct {
	Source    string
	Threshold int
	TimeoutMS int
}

type ParallelConfig struct {
	Sources   []string
	TimeoutMS int
}

type TieBreakerWeights struct {
	Recency     float64
	Authority   float64
	Specificity float64
}

// ClassifierConfig extends the built-in keyword tables without code changes.
type ClassifierConfig struct {
	UrgencyKeywords   []string
	TechnicalKeywords []string
	Domains           map[string][]string
	Types             map[string][]string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/askroute")

	viper.SetEnvPrefix("ASKROUTE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Routing.applyDefaults()

	return &config, nil
}

// Watch re-reads the config file on change and hands the new routing section
// to onChange once it validates against the registered source names. A reload
// that fails to parse or validate goes to onError instead of onChange; the
// server treats that as fatal rather than keep running on a config that no
// longer matches what is on disk.
func Watch(knownSources []string, onChange func(RoutingConfig), onError func(error)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		var config Config
		if err := viper.Unmarshal(&config); err != nil {
			onError(fmt.Errorf("failed to unmarshal config on reload: %w", err))
			return
		}
		config.Routing.applyDefaults()
		if err := config.Routing.Validate(knownSources); err != nil {
			onError(fmt.Errorf("invalid routing config on reload: %w", err))
			return
		}
		onChange(config.Routing)
	})
	viper.WatchConfig()
}

// Validate rejects configurations that name a source no adapter registered.
// This is fatal at startup or reload, never surfaced per-request.
func (r *RoutingConfig) Validate(knownSources []string) error {
	known := make(map[string]bool, len(knownSources))
	for _, name := range knownSources {
		known[name] = true
	}

	for profile, steps := range r.Sequential {
		if len(steps) == 0 {
			return fmt.Errorf("sequential profile %q has no steps", profile)
		}
		for _, step := range steps {
			if !known[step.Source] {
				return fmt.Errorf("sequential profile %q references unknown source %q", profile, step.Source)
			}
			if step.Threshold < 0 || step.Threshold > 100 {
				return fmt.Errorf("sequential profile %q source %q has threshold %d outside [0,100]", profile, step.Source, step.Threshold)
			}
		}
	}
	if _, ok := r.Sequential["default"]; !ok {
		return fmt.Errorf("sequential profile %q is required", "default")
	}
	if _, ok := r.Sequential["fast"]; !ok {
		return fmt.Errorf("sequential profile %q is required", "fast")
	}

	for _, name := range r.Parallel.Sources {
		if !known[name] {
			return fmt.Errorf("parallel config references unknown source %q", name)
		}
	}

	for name := range r.Authority {
		if !known[name] {
			return fmt.Errorf("authority config references unknown source %q", name)
		}
	}

	sum := r.TieBreaker.Recency + r.TieBreaker.Authority + r.TieBreaker.Specificity
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("tie-breaker weights sum to %.2f, expected 1.0", sum)
	}

	return nil
}

// applyDefaults fills the pieces viper defaults cannot express (nested lists
// and maps) so a bare config file still yields a total routing table.
func (r *RoutingConfig) applyDefaults() {
	if r.GlobalTimeoutMS == 0 {
		r.GlobalTimeoutMS = 10000
	}
	if r.RaceThreshold == 0 {
		r.RaceThreshold = 80
	}
	if r.RaceGraceMS == 0 {
		r.RaceGraceMS = 500
	}
	if r.DominanceThreshold == 0 {
		r.DominanceThreshold = 0.8
	}
	if r.DefaultAccuracy == 0 {
		r.DefaultAccuracy = 0.8
	}
	if r.ConflictThreshold == 0 {
		r.ConflictThreshold = 0.5
	}
	if r.CombineThreshold == 0 {
		r.CombineThreshold = 0.7
	}

	if r.Sequential == nil {
		r.Sequential = map[string][]SequentialStep{}
	}
	if _, ok := r.Sequential["default"]; !ok {
		r.Sequential["default"] = []SequentialStep{
			{Source: "knowledge_base", Threshold: 85, TimeoutMS: 2000},
			{Source: "llm", Threshold: 75, TimeoutMS: 8000},
			{Source: "docs", Threshold: 70, TimeoutMS: 5000},
			{Source: "web", Threshold: 0, TimeoutMS: 8000},
		}
	}
	if _, ok := r.Sequential["fast"]; !ok {
		r.Sequential["fast"] = []SequentialStep{
			{Source: "knowledge_base", Threshold: 80, TimeoutMS: 1500},
			{Source: "llm", Threshold: 70, TimeoutMS: 5000},
			{Source: "web", Threshold: 0, TimeoutMS: 6000},
		}
	}

	if len(r.Parallel.Sources) == 0 {
		r.Parallel.Sources = []string{"knowledge_base", "llm", "docs", "web"}
	}
	if r.Parallel.TimeoutMS == 0 {
		r.Parallel.TimeoutMS = r.GlobalTimeoutMS
	}

	if r.TieBreaker == (TieBreakerWeights{}) {
		r.TieBreaker = TieBreakerWeights{Recency: 0.3, Authority: 0.4, Specificity: 0.3}
	}

	if r.Authority == nil {
		r.Authority = map[string]int{
			"docs":           100,
			"knowledge_base": 80,
			"llm":            60,
			"web":            40,
		}
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.rateLimit", 120)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/askroute.db")

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "knowledge_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("docs.baseURL", "https://learn.microsoft.com")
	viper.SetDefault("docs.sites", []string{"learn.microsoft.com", "docs.aws.amazon.com"})
	viper.SetDefault("docs.maxResults", 5)
	viper.SetDefault("docs.timeoutSec", 10)

	viper.SetDefault("web.maxResults", 5)
	viper.SetDefault("web.timeoutSec", 10)

	viper.SetDefault("routing.globalTimeoutMS", 10000)
	viper.SetDefault("routing.raceThreshold", 80)
	viper.SetDefault("routing.raceGraceMS", 500)
	viper.SetDefault("routing.dominanceThreshold", 0.8)
	viper.SetDefault("routing.defaultAccuracy", 0.8)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
