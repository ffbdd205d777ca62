// Package config loads service configuration from an optional YAML file
// overlaid with OXILEADS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/materialize"
)

// EnvPrefix is stripped from environment keys:
// OXILEADS_STORE_SHEET_ID -> store.sheet_id.
const EnvPrefix = "OXILEADS_"

// Provider and store kinds.
const (
	ProviderMemory = "memory"
	ProviderGoogle = "google"
	ProviderOxiDB  = "oxidb"

	StoreSheet    = "sheet"
	StorePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig          `koanf:"server"`
	Log       LogConfig             `koanf:"log"`
	Auth      AuthConfig            `koanf:"auth"`
	Webhook   WebhookConfig         `koanf:"webhook"`
	Provider  ProviderConfig        `koanf:"provider"`
	Store     StoreConfig           `koanf:"store"`
	Redis     RedisConfig           `koanf:"redis"`
	NATS      NATSConfig            `koanf:"nats"`
	Folders   FoldersConfig         `koanf:"folders"`
	Templates materialize.Templates `koanf:"templates"`
	Render    RenderConfig          `koanf:"render"`
	Identity  IdentityConfig        `koanf:"identity"`
	Defaults  DefaultsConfig        `koanf:"defaults"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type LogConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	GELFAddr string `koanf:"gelf_addr"`
	Service  string `koanf:"service"`
}

type AuthConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	AdminEmail        string        `koanf:"admin_email"`
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	// AdminPassword is hashed at startup when no hash is configured.
	AdminPassword string `koanf:"admin_password"`
}

type WebhookConfig struct {
	// Token, when set, must match the X-Webhook-Token header or the
	// token query parameter.
	Token          string        `koanf:"token"`
	DedupeTTL      time.Duration `koanf:"dedupe_ttl"`
	// ProcessTimeout bounds one delivery. The pipeline does not stop
	// when the sender disconnects.
	ProcessTimeout time.Duration `koanf:"process_timeout"`
}

type RenderConfig struct {
	// ReplaceBareWords also fills one-word names like "email" written
	// without braces or brackets.
	ReplaceBareWords bool `koanf:"replace_bare_words"`
}

type ProviderConfig struct {
	Kind            string        `koanf:"kind"`
	CredentialsFile string        `koanf:"credentials_file"`
	AccessToken     string        `koanf:"access_token"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	Burst           int           `koanf:"burst"`
	CallTimeout     time.Duration `koanf:"call_timeout"`
	// TemplateDir holds <template id>.txt files imported into the memory
	// and oxidb backends at startup.
	TemplateDir string `koanf:"template_dir"`
}

type StoreConfig struct {
	Kind          string `koanf:"kind"`
	SheetID       string `koanf:"sheet_id"`
	SheetName     string `koanf:"sheet_name"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	OxiDBAddr     string `koanf:"oxidb_addr"`
	OxiDBPoolSize int    `koanf:"oxidb_pool_size"`
	OxiDBBucket   string `koanf:"oxidb_bucket"`
}

type RedisConfig struct {
	URL    string `koanf:"url"`
	Prefix string `koanf:"prefix"`
}

type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type FoldersConfig struct {
	PhaseOneRoot string `koanf:"phase_one_root"`
	PhaseTwoRoot string `koanf:"phase_two_root"`
}

type IdentityConfig struct {
	Strict           bool   `koanf:"strict"`
	DefaultFirstName string `koanf:"default_first_name"`
	DefaultLastName  string `koanf:"default_last_name"`
	DefaultEmail     string `koanf:"default_email"`
}

type DefaultsConfig struct {
	FinancingType    string `koanf:"financing_type"`
	FundingTargetMin string `koanf:"funding_target_min"`
	FundingTargetMax string `koanf:"funding_target_max"`
	Timezone         string `koanf:"timezone"`
}

// Load reads path when it is non-empty, then the environment.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		content = b
	}
	return LoadBytes(content)
}

// LoadBytes parses YAML content, overlays the environment, applies
// defaults and validates.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")
	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Split on the first underscore after the prefix only, so field names
	// keep theirs: OXILEADS_FOLDERS_PHASE_ONE_ROOT -> folders.phase_one_root.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		section, field, ok := strings.Cut(lower, "_")
		if !ok {
			return lower
		}
		return section + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 10 << 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = "oxileads"
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Auth.AdminEmail == "" {
		cfg.Auth.AdminEmail = "admin@oxileads.local"
	}

	if cfg.Webhook.DedupeTTL == 0 {
		cfg.Webhook.DedupeTTL = 24 * time.Hour
	}
	if cfg.Webhook.ProcessTimeout == 0 {
		cfg.Webhook.ProcessTimeout = 5 * time.Minute
	}

	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = ProviderMemory
	}
	if cfg.Provider.RatePerSecond == 0 {
		cfg.Provider.RatePerSecond = 5
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 10
	}
	if cfg.Provider.CallTimeout == 0 {
		cfg.Provider.CallTimeout = 30 * time.Second
	}

	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreSheet
	}
	if cfg.Store.SheetID == "" {
		cfg.Store.SheetID = "leads"
	}
	if cfg.Store.SheetName == "" {
		cfg.Store.SheetName = "Leads"
	}
	if cfg.Store.OxiDBAddr == "" {
		cfg.Store.OxiDBAddr = "127.0.0.1:4444"
	}
	if cfg.Store.OxiDBPoolSize == 0 {
		cfg.Store.OxiDBPoolSize = 3
	}
	if cfg.Store.OxiDBBucket == "" {
		cfg.Store.OxiDBBucket = "leads"
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "oxileads:delivery:"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "leads"
	}

	if cfg.Folders.PhaseOneRoot == "" {
		cfg.Folders.PhaseOneRoot = "phase-one"
	}
	if cfg.Folders.PhaseTwoRoot == "" {
		cfg.Folders.PhaseTwoRoot = "phase-two"
	}

	// Template ids default to their config key, which matches the file
	// names expected in provider.template_dir.
	t := &cfg.Templates
	for _, p := range []struct {
		v   *string
		def string
	}{
		{&t.NDA, "nda"},
		{&t.PowerOfAttorney, "power_of_attorney"},
		{&t.ProjectOverview, "project_overview"},
		{&t.IdentificationForm, "identification_form"},
		{&t.TermSheetPreDevelopment, "term_sheet_pre_development"},
		{&t.TermSheetBridge, "term_sheet_bridge"},
		{&t.TermSheetConstruction, "term_sheet_construction"},
		{&t.FormC, "form_c"},
		{&t.EscrowAgreement, "escrow_agreement"},
		{&t.FinancialStatements, "financial_statements"},
		{&t.ContentBrief, "content_brief"},
	} {
		if *p.v == "" {
			*p.v = p.def
		}
	}

	if cfg.Defaults.FinancingType == "" {
		cfg.Defaults.FinancingType = "Construction Loan"
	}
	if cfg.Defaults.FundingTargetMin == "" {
		cfg.Defaults.FundingTargetMin = "$50,000"
	}
	if cfg.Defaults.FundingTargetMax == "" {
		cfg.Defaults.FundingTargetMax = "$1,235,000"
	}
	if cfg.Defaults.Timezone == "" {
		cfg.Defaults.Timezone = "America/New_York"
	}
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.AdminPasswordHash == "" && c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("auth.admin_password_hash or auth.admin_password is required"))
	}

	switch c.Provider.Kind {
	case ProviderMemory, ProviderOxiDB:
	case ProviderGoogle:
		if c.Provider.CredentialsFile == "" && c.Provider.AccessToken == "" {
			errs = append(errs, errors.New("provider.credentials_file or provider.access_token is required for google"))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.kind %q is not one of memory, google, oxidb", c.Provider.Kind))
	}
	if c.Provider.RatePerSecond < 0 || c.Provider.Burst < 0 {
		errs = append(errs, errors.New("provider.rate_per_second and provider.burst must not be negative"))
	}

	switch c.Store.Kind {
	case StoreSheet:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind %q is not one of sheet, postgres", c.Store.Kind))
	}

	if _, err := time.LoadLocation(c.Defaults.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("defaults.timezone: %w", err))
	}
	return errors.Join(errs...)
}
