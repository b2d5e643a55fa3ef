package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/time/rate"

	"github.com/roach88/tally/internal/extract"
	"github.com/roach88/tally/internal/hint"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file values.
const (
	EnvHintProvider = "TALLY_HINT_PROVIDER"
	EnvDB           = "TALLY_DB"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
)

// Hint providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the decoded, validated configuration.
type Config struct {
	DB                     string     `json:"db"`
	RowCap                 int        `json:"row_cap"`
	CorroborationThreshold int        `json:"corroboration_threshold"`
	Timezone               string     `json:"timezone"`
	MinorUnits             int        `json:"minor_units"`
	Hint                   Hint       `json:"hint"`
	Server                 Server     `json:"server"`
	Vocabulary             Vocabulary `json:"vocabulary"`
}

// Hint configures the interpretation service.
type Hint struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	BaseURL      string  `json:"base_url"`
	APIKey       string  `json:"api_key"`
	Timeout      string  `json:"timeout"`
	MaxRetries   int     `json:"max_retries"`
	RetryBackoff string  `json:"retry_backoff"`
	Rate         float64 `json:"rate"`
	Burst        int     `json:"burst"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `json:"addr"`
}

// Vocabulary holds keywords merged over the extractor's built-in tables.
type Vocabulary struct {
	// Categories maps a category to extra keywords for it.
	Categories map[string][]string `json:"categories"`
	// PaymentMethods maps a keyword to a payment method.
	PaymentMethods map[string]string `json:"payment_methods"`
}

// Error is a configuration problem, positioned in the source when CUE
// reported one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	loc := ""
	if e.Pos.IsValid() {
		loc = fmt.Sprintf("%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Field != "" {
		return fmt.Sprintf("%sconfig %s: %s", loc, e.Field, e.Message)
	}
	return fmt.Sprintf("%sconfig: %s", loc, e.Message)
}

// Default returns the schema defaults without reading files or environment.
func Default() *Config {
	cfg, err := build(nil, "", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads the CUE file at path (optional; "" means defaults only),
// unifies it with the schema, applies environment overrides and validates
// the result. getenv defaults to os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("reading %s: %v", path, err)}
		}
		src = data
	}
	return build(src, path, getenv)
}

func build(src []byte, filename string, getenv func(string) string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, convertError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, convertError(err)
		}
		v = v.Unify(user)
	}
	if getenv != nil {
		v = applyEnv(ctx, v, getenv)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, convertError(err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, convertError(err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv unifies environment values into v so the schema constrains them
// exactly like file values.
func applyEnv(ctx *cue.Context, v cue.Value, getenv func(string) string) cue.Value {
	if p := strings.TrimSpace(getenv(EnvHintProvider)); p != "" {
		v = v.FillPath(cue.ParsePath("hint.provider"), ctx.Encode(p))
	}
	if db := strings.TrimSpace(getenv(EnvDB)); db != "" {
		v = v.FillPath(cue.ParsePath("db"), ctx.Encode(db))
	}
	return v
}

// check validates what CUE cannot express.
func (c *Config) check() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &Error{Field: "timezone", Message: err.Error()}
	}
	if _, err := time.ParseDuration(c.Hint.Timeout); err != nil {
		return &Error{Field: "hint.timeout", Message: err.Error()}
	}
	if _, err := time.ParseDuration(c.Hint.RetryBackoff); err != nil {
		return &Error{Field: "hint.retry_backoff", Message: err.Error()}
	}
	return nil
}

func convertError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	return &Error{
		Field:   strings.Join(first.Path(), "."),
		Message: msg,
		Pos:     first.Position(),
	}
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExtractOptions returns extractor options with the configured vocabulary
// merged over the defaults.
func (c *Config) ExtractOptions() extract.Options {
	vocab := extract.DefaultVocabulary()
	for category, words := range c.Vocabulary.Categories {
		category = strings.ToLower(strings.TrimSpace(category))
		for _, w := range words {
			vocab.Categories[strings.ToLower(strings.TrimSpace(w))] = category
		}
	}
	for word, method := range c.Vocabulary.PaymentMethods {
		vocab.PaymentMethods[strings.ToLower(strings.TrimSpace(word))] = method
	}
	return extract.Options{
		Vocabulary: vocab,
		Location:   c.Location(),
		MinorUnits: c.MinorUnits,
	}
}

// HintPolicy returns the hint call policy.
func (c *Config) HintPolicy() hint.Config {
	timeout, _ := time.ParseDuration(c.Hint.Timeout)
	backoff, _ := time.ParseDuration(c.Hint.RetryBackoff)
	return hint.Config{
		Timeout:      timeout,
		MaxRetries:   c.Hint.MaxRetries,
		RetryBackoff: backoff,
		Rate:         rate.Limit(c.Hint.Rate),
		Burst:        c.Hint.Burst,
	}
}

// Suggester builds the configured interpretation service client. API keys
// come from the file or, when empty there, from GEMINI_API_KEY or
// OPENAI_API_KEY via getenv (default os.Getenv).
func (c *Config) Suggester(ctx context.Context, getenv func(string) string) (hint.Suggester, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	key := c.Hint.APIKey
	switch c.Hint.Provider {
	case ProviderGemini:
		if key == "" {
			key = getenv(EnvGeminiKey)
		}
		s, err := hint.NewGeminiSuggester(ctx, hint.GeminiOptions{APIKey: key, Model: c.Hint.Model, BaseURL: c.Hint.BaseURL})
		if err != nil {
			return nil, &Error{Field: "hint.api_key", Message: err.Error()}
		}
		return s, nil
	case ProviderOpenAI:
		if key == "" {
			key = getenv(EnvOpenAIKey)
		}
		s, err := hint.NewOpenAISuggester(hint.OpenAIOptions{APIKey: key, Model: c.Hint.Model, BaseURL: c.Hint.BaseURL})
		if err != nil {
			return nil, &Error{Field: "hint.api_key", Message: err.Error()}
		}
		return s, nil
	default:
		return hint.NopSuggester{}, nil
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Hint.APIKey != "" {
		c.Hint.APIKey = "redacted"
	}
	return c
}
