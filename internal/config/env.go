package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AppMode        string
	CORSOrigins    []string
	RequestTimeout time.Duration

	Neo4jURI             string
	Neo4jUser            string
	Neo4jPassword        string
	Neo4jDatabase        string
	Neo4jIndexName       string
	Neo4jParentIndexName string
	Neo4jMaxPool         int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string
	ResultBackend string
	ResultTTL     time.Duration
	DatabaseURL   string

	AIAPIKey      string
	EmbedModel    string
	EmbedDim      int
	GenModel      string
	LLMRatePerSec float64
	PromptsFile   string

	MaxConcurrentTasks  int
	AdmissionScope      string
	AdmissionRetryDelay time.Duration
	AdmissionMaxRetries int
	WorkerConcurrency   int
	JobTimeout          time.Duration
	ResultWait          time.Duration

	MaxQuestionsPerPage int
	ParentChunkTokens   int
	ParentOverlapTokens int
	ChildChunkTokens    int
	ChildOverlapTokens  int

	RetrievalK        int
	RetrievalMinScore float64
	RetrievalMode     string

	JWTSecret string
	TokenTTL  time.Duration

	DefaultUserUUID     string
	DefaultUserUsername string
	DefaultUserEmail    string
	DefaultUserName     string
	DefaultUserPassword string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string

	FetchTimeout time.Duration
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppMode:        getEnv("APP_MODE", "dev"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8888"}),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),

		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:        getEnv("NEO4J_DATABASE", ""),
		Neo4jIndexName:       getEnv("NEO4J_INDEX_NAME", "typical_rag"),
		Neo4jParentIndexName: getEnv("NEO4J_PARENT_INDEX_NAME", "parent_document"),
		Neo4jMaxPool:         getEnvInt("NEO4J_MAX_POOL_SIZE", 50),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueName:     getEnv("QUEUE_NAME", "ingest"),
		ResultBackend: strings.ToLower(getEnv("RESULT_BACKEND", "redis")),
		ResultTTL:     getEnvDuration("RESULT_TTL", 7*24*time.Hour),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:      getEnvInt("EMBED_DIM", 768),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),
		LLMRatePerSec: getEnvFloat("LLM_RATE_PER_SEC", 5),
		PromptsFile:   getEnv("PROMPTS_FILE", ""),

		MaxConcurrentTasks:  getEnvInt("MAX_CONCURRENT_TASKS", 2),
		AdmissionScope:      strings.ToLower(getEnv("ADMISSION_SCOPE", "local")),
		AdmissionRetryDelay: getEnvDuration("ADMISSION_RETRY_DELAY", 60*time.Second),
		AdmissionMaxRetries: getEnvInt("ADMISSION_MAX_RETRIES", 30),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
		JobTimeout:          getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
		ResultWait:          getEnvDuration("RESULT_WAIT", 10*time.Second),

		MaxQuestionsPerPage: getEnvInt("MAX_QUESTIONS_PER_PAGE", 2),
		ParentChunkTokens:   getEnvInt("PARENT_CHUNK_TOKENS", 512),
		ParentOverlapTokens: getEnvInt("PARENT_OVERLAP_TOKENS", 24),
		ChildChunkTokens:    getEnvInt("CHILD_CHUNK_TOKENS", 100),
		ChildOverlapTokens:  getEnvInt("CHILD_OVERLAP_TOKENS", 24),

		RetrievalK:        getEnvInt("RETRIEVAL_K", 5),
		RetrievalMinScore: getEnvFloat("RETRIEVAL_MIN_SCORE", 0.5),
		RetrievalMode:     strings.ToLower(getEnv("RETRIEVAL_MODE", "child")),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 30*time.Minute),

		DefaultUserUUID:     getEnv("DEFAULT_USER_UUID", "00000000-0000-0000-0000-000000000000"),
		DefaultUserUsername: getEnv("DEFAULT_USER_USERNAME", "admin"),
		DefaultUserEmail:    getEnv("DEFAULT_USER_EMAIL", "test@test.com"),
		DefaultUserName:     getEnv("DEFAULT_USER_NAME", "Admin"),
		DefaultUserPassword: getEnv("DEFAULT_USER_PASSWORD", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
		S3Endpoint:   getEnv("AWS_S3_ENDPOINT", ""),

		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Neo4jPassword == "" {
		errs = append(errs, errors.New("NEO4J_PASSWORD not set"))
	}
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.MaxConcurrentTasks < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_TASKS must be at least 1, got %d", c.MaxConcurrentTasks))
	}
	if c.MaxQuestionsPerPage < 0 {
		errs = append(errs, fmt.Errorf("MAX_QUESTIONS_PER_PAGE must not be negative, got %d", c.MaxQuestionsPerPage))
	}
	switch c.ResultBackend {
	case "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL required when RESULT_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("RESULT_BACKEND must be redis or postgres, got %q", c.ResultBackend))
	}
	switch c.AdmissionScope {
	case "local", "shared":
	default:
		errs = append(errs, fmt.Errorf("ADMISSION_SCOPE must be local or shared, got %q", c.AdmissionScope))
	}
	switch c.RetrievalMode {
	case "child", "parent":
	default:
		errs = append(errs, fmt.Errorf("RETRIEVAL_MODE must be child or parent, got %q", c.RetrievalMode))
	}
	return errors.Join(errs...)
}

// ObjectStorageEnabled reports whether S3 credentials and bucket are configured.
func (c *Config) ObjectStorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not an int, using default %d\n", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: %s=%q not a number, using default %v\n", key, v, def)
		return def
	}
	return f
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	fmt.Fprintf(os.Stderr, "WARN: %s=%q not a duration, using default %s\n", key, v, def)
	return def
}
