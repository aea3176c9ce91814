package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const defaultPath = "."

// Resolver provider names.
const (
	ResolverProviderSupabase  = "supabase"
	ResolverProviderFirestore = "firestore"
)

const (
	defaultTokenURI         = "https://oauth2.googleapis.com/token"
	defaultMessagingScope   = "https://www.googleapis.com/auth/firebase.messaging"
	defaultAndroidChannelID = "high_importance_channel"
	defaultCallTimeout      = 10 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Firebase configuration for the FCM HTTP v1 delivery path
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// Supabase configuration for the relational record store
	Supabase *SupabaseConfig `json:"supabase" yaml:"supabase"`

	// Resolver selects where recipient push profiles are looked up
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`

	// Postgres is optional; when present, delivery outcomes are logged to it
	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// WebhookAuth configuration for OIDC verification of the webhook caller
	WebhookAuth *WebhookAuthConfig `json:"webhookAuth" yaml:"webhookAuth"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// FirebaseConfig defines the target project and service-account credential
// used for token exchange and FCM delivery.
type FirebaseConfig struct {
	ProjectID string `json:"projectId" yaml:"projectId"`

	// ServiceAccount is the service-account credential as a JSON string
	// (client_email, private_key, token_uri). Matches the FIREBASE_SERVICE_ACCOUNT
	// environment variable set on hosted deployments.
	ServiceAccount string `json:"serviceAccount" yaml:"serviceAccount"`

	// ServiceAccountPath points at a credential JSON file; used when
	// ServiceAccount is empty.
	ServiceAccountPath string `json:"serviceAccountPath" yaml:"serviceAccountPath"`

	// Scope requested for the access token. Use the cloud-platform scope when
	// the Firestore resolver is enabled, it covers both Firestore and FCM.
	Scope string `json:"scope" yaml:"scope"`

	// AndroidChannelID is the notification channel the client app registered.
	AndroidChannelID string `json:"androidChannelId" yaml:"androidChannelId"`

	// CallTimeout bounds each outbound call (token exchange, FCM send,
	// profile lookup).
	CallTimeout time.Duration `json:"callTimeout" yaml:"callTimeout"`
}

// SupabaseConfig defines the PostgREST endpoint of the relational record store.
type SupabaseConfig struct {
	URL            string `json:"url" yaml:"url"`
	ServiceRoleKey string `json:"serviceRoleKey" yaml:"serviceRoleKey"`
}

// ResolverConfig selects the recipient resolver implementation.
type ResolverConfig struct {
	// Provider is "supabase" (relational) or "firestore" (document).
	Provider string `json:"provider" yaml:"provider"`
}

// WebhookAuthConfig defines OIDC verification of inbound webhook calls.
type WebhookAuthConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Audience expected in the caller's ID token. Empty means the push
	// endpoint URL is used.
	Audience string `json:"audience" yaml:"audience"`
}

// GoogleServiceAccount mirrors the credential JSON issued by the Google Cloud
// console. Only the fields the token exchange needs are kept.
type GoogleServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
	ProjectID   string `json:"project_id"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: FIREBASE_PROJECTID -> firebase.projectId (not firebase.projectid)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyUpstreamEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyUpstreamEnvOverrides honors the flat environment variable names hosting
// platforms set. Their underscored multi-word segments cannot be aligned with
// YAML keys by the canonicalizer, so they are read directly.
func applyUpstreamEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		if cfg.Firebase == nil {
			cfg.Firebase = &FirebaseConfig{}
		}
		cfg.Firebase.ProjectID = v
	}
	if v := os.Getenv("FIREBASE_SERVICE_ACCOUNT"); v != "" {
		if cfg.Firebase == nil {
			cfg.Firebase = &FirebaseConfig{}
		}
		cfg.Firebase.ServiceAccount = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		if cfg.Supabase == nil {
			cfg.Supabase = &SupabaseConfig{}
		}
		cfg.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		if cfg.Supabase == nil {
			cfg.Supabase = &SupabaseConfig{}
		}
		cfg.Supabase.ServiceRoleKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Resolver.Provider == "" {
		cfg.Resolver.Provider = ResolverProviderSupabase
	}
	if cfg.Firebase == nil {
		return
	}
	if cfg.Firebase.Scope == "" {
		cfg.Firebase.Scope = defaultMessagingScope
	}
	if cfg.Firebase.AndroidChannelID == "" {
		cfg.Firebase.AndroidChannelID = defaultAndroidChannelID
	}
	if cfg.Firebase.CallTimeout <= 0 {
		cfg.Firebase.CallTimeout = defaultCallTimeout
	}
}

// ServiceAccountCredential decodes the configured service-account credential,
// preferring the inline JSON over the file path.
func (c *FirebaseConfig) ServiceAccountCredential() (*GoogleServiceAccount, error) {
	raw := []byte(c.ServiceAccount)
	if len(raw) == 0 {
		if c.ServiceAccountPath == "" {
			return nil, errors.New("no service account configured")
		}
		fileRaw, err := os.ReadFile(c.ServiceAccountPath)
		if err != nil {
			return nil, errors.Wrap(err, "read service account file")
		}
		raw = fileRaw
	}

	cred := &GoogleServiceAccount{}
	if err := json.Unmarshal(raw, cred); err != nil {
		return nil, errors.Wrap(err, "decode service account JSON")
	}
	if cred.ClientEmail == "" || cred.PrivateKey == "" {
		return nil, errors.New("service account missing client_email or private_key")
	}
	if cred.TokenURI == "" {
		cred.TokenURI = defaultTokenURI
	}

	return cred, nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
