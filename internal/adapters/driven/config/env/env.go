// Package env resolves application settings from built-in defaults, the
// TOML config store, a .env file and process environment variables, in
// increasing order of precedence.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// Environment variable names.
const (
	VarDatabaseURL     = "DATABASE_URL"
	VarPGHost          = "PGHOST"
	VarPGPort          = "PGPORT"
	VarPGUser          = "PGUSER"
	VarPGPassword      = "PGPASSWORD"
	VarPGDatabase      = "PGDATABASE"
	VarStore           = "DRUGINFO_STORE"
	VarCollection      = "DRUGINFO_COLLECTION"
	VarLayout          = "DRUGINFO_LAYOUT"
	VarMetric          = "DRUGINFO_METRIC"
	VarEmbedProvider   = "EMBEDDING_PROVIDER"
	VarEmbedModel      = "EMBEDDING_MODEL"
	VarEmbedDim        = "EMBEDDING_DIM"
	VarLLMProvider     = "LLM_PROVIDER"
	VarLLMModel        = "LLM_MODEL"
	VarOpenAIKey       = "OPENAI_API_KEY"
	VarAnthropicKey    = "ANTHROPIC_API_KEY"
	VarOllamaBaseURL   = "OLLAMA_BASE_URL"
	VarTemperature     = "GEN_TEMPERATURE"
	VarRetrieveK       = "RETRIEVE_K"
	VarRetrieveTopN    = "RETRIEVE_TOP_N"
	VarBypassRetrieval = "ROUTER_BYPASS_RETRIEVAL"
	VarHTTPAddr        = "DRUGINFO_HTTP_ADDR"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored. With no paths, ".env" in the working directory is used.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Lookup reads a variable. It matches os.LookupEnv.
type Lookup func(key string) (string, bool)

// Resolve builds AppSettings from defaults, then store (may be nil), then
// lookup (nil means the process environment).
func Resolve(store driven.ConfigStore, lookup Lookup) (domain.AppSettings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := domain.DefaultAppSettings()
	r := &resolver{store: store, lookup: lookup}

	r.str(&s.Store.DSN, "store.dsn", "")
	if dsn := postgresDSN(lookup); dsn != "" {
		s.Store.DSN = dsn
	}
	r.backend(&s.Store.Backend, "store.backend", VarStore)
	r.str(&s.Store.Collection, "store.collection", VarCollection)
	r.layout(&s.Store.Layout, "store.layout", VarLayout)
	r.metric(&s.Store.Metric, "store.metric", VarMetric)

	r.provider(&s.Embedding.Provider, "embedding.provider", VarEmbedProvider)
	embedModelSet := r.str(&s.Embedding.Model, "embedding.model", VarEmbedModel)
	if !embedModelSet {
		s.Embedding.Model = domain.DefaultEmbeddingModels()[s.Embedding.Provider]
	}
	r.str(&s.Embedding.BaseURL, "embedding.base_url", baseURLVar(s.Embedding.Provider))
	r.integer(&s.Embedding.CacheSize, "embedding.cache_size", "")

	dimSet := r.integer(&s.Store.Dimensions, "store.dimensions", VarEmbedDim)
	if !dimSet {
		if d, ok := domain.EmbeddingDimensions()[s.Embedding.Model]; ok {
			s.Store.Dimensions = d
		}
	}

	r.provider(&s.LLM.Provider, "llm.provider", VarLLMProvider)
	if !r.str(&s.LLM.Model, "llm.model", VarLLMModel) {
		s.LLM.Model = domain.DefaultLLMModels()[s.LLM.Provider]
	}
	r.str(&s.LLM.BaseURL, "llm.base_url", baseURLVar(s.LLM.Provider))
	r.float(&s.LLM.RequestsPerSecond, "llm.requests_per_second", "")

	s.Embedding.APIKey = r.apiKey(s.Embedding.Provider, "embedding.api_key")
	s.LLM.APIKey = r.apiKey(s.LLM.Provider, "llm.api_key")

	r.boolean(&s.Router.BypassRetrieval, "router.bypass_retrieval", VarBypassRetrieval)
	r.boolean(&s.Router.DefaultInDomain, "router.default_in_domain", "")
	r.integer(&s.Router.FanOut, "router.fan_out", VarRetrieveK)
	r.integer(&s.Router.TopN, "router.top_n", VarRetrieveTopN)
	r.float(&s.Router.Temperature, "router.temperature", VarTemperature)

	r.str(&s.HTTP.Addr, "http.addr", VarHTTPAddr)
	r.integer(&s.HTTP.RequestsPerMinute, "http.requests_per_minute", "")

	if len(r.errs) > 0 {
		return s, errors.Join(r.errs...)
	}
	return s, Validate(s)
}

// Validate checks cross-field constraints of resolved settings.
func Validate(s domain.AppSettings) error {
	var errs []error
	if s.Store.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("store dimensions must be positive, got %d", s.Store.Dimensions))
	}
	if s.Store.Backend == domain.StoreBackendPostgres && s.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("postgres backend needs %s or PG* variables", VarDatabaseURL))
	}
	if s.Router.FanOut <= 0 || s.Router.TopN <= 0 {
		errs = append(errs, fmt.Errorf("fan-out and top-n must be positive"))
	}
	if s.Router.Temperature < 0 || s.Router.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", s.Router.Temperature))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
}

// postgresDSN returns DATABASE_URL, or a URL built from the libpq PG*
// variables when PGHOST or PGDATABASE is set.
func postgresDSN(lookup Lookup) string {
	if v, ok := lookup(VarDatabaseURL); ok && v != "" {
		return v
	}
	host, hostOK := lookup(VarPGHost)
	db, dbOK := lookup(VarPGDatabase)
	if !hostOK && !dbOK {
		return ""
	}
	if host == "" {
		host = "localhost"
	}
	port, _ := lookup(VarPGPort)
	if port == "" {
		port = "5432"
	}

	u := url.URL{Scheme: "postgres", Host: host + ":" + port, Path: "/" + db}
	user, _ := lookup(VarPGUser)
	password, hasPassword := lookup(VarPGPassword)
	switch {
	case user != "" && hasPassword:
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}
	return u.String()
}

// resolver applies config-store then environment values onto settings
// fields and collects parse errors.
type resolver struct {
	store  driven.ConfigStore
	lookup Lookup
	errs   []error
}

// raw returns the winning textual value and whether any source set it.
func (r *resolver) raw(key, envVar string) (string, bool) {
	if envVar != "" {
		if v, ok := r.lookup(envVar); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	if r.store != nil {
		if v, ok := r.store.Get(key); ok {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

func (r *resolver) str(dst *string, key, envVar string) bool {
	v, ok := r.raw(key, envVar)
	if ok && v != "" {
		*dst = v
		return true
	}
	return false
}

func (r *resolver) integer(dst *int, key, envVar string) bool {
	v, ok := r.raw(key, envVar)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return false
	}
	*dst = n
	return true
}

func (r *resolver) float(dst *float64, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

func (r *resolver) boolean(dst *bool, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (r *resolver) provider(dst *domain.AIProvider, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	p := domain.AIProvider(strings.ToLower(v))
	if !p.IsValid() {
		r.errs = append(r.errs, fmt.Errorf("%s: %w: %q", key, domain.ErrUnsupportedType, v))
		return
	}
	*dst = p
}

func (r *resolver) backend(dst *domain.StoreBackend, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	b := domain.StoreBackend(strings.ToLower(v))
	if !b.IsValid() {
		r.errs = append(r.errs, fmt.Errorf("%s: %w: %q", key, domain.ErrUnsupportedType, v))
		return
	}
	*dst = b
}

func (r *resolver) layout(dst *domain.StoreLayout, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	l := domain.StoreLayout(strings.ToLower(v))
	if !l.IsValid() {
		r.errs = append(r.errs, fmt.Errorf("%s: %w: %q", key, domain.ErrUnsupportedType, v))
		return
	}
	*dst = l
}

func (r *resolver) metric(dst *domain.DistanceMetric, key, envVar string) {
	v, ok := r.raw(key, envVar)
	if !ok {
		return
	}
	m := domain.DistanceMetric(strings.ToLower(v))
	if !m.IsValid() {
		r.errs = append(r.errs, fmt.Errorf("%s: %w: %q", key, domain.ErrUnsupportedType, v))
		return
	}
	*dst = m
}

// baseURLVar returns the endpoint override variable for local providers.
func baseURLVar(p domain.AIProvider) string {
	if p == domain.AIProviderOllama {
		return VarOllamaBaseURL
	}
	return ""
}

// apiKey picks the provider-specific environment key, falling back to the
// config store.
func (r *resolver) apiKey(p domain.AIProvider, key string) string {
	var envVar string
	switch p {
	case domain.AIProviderOpenAI:
		envVar = VarOpenAIKey
	case domain.AIProviderAnthropic:
		envVar = VarAnthropicKey
	default:
		return ""
	}
	v, _ := r.raw(key, envVar)
	return v
}
