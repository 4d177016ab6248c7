// Package config loads immutable process configuration. Values are read once
// at startup and handed to components explicitly; nothing here is mutated
// after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CATALYST_"

// Defaults for the service allow-lists. Matching is exact and case-sensitive
// everywhere these are consumed.
var (
	defaultSignerServices   = []string{"authx_token_api", "dataplane_api"}
	defaultRegistryServices = []string{"authx_token_api", "catalyst_node_api"}
)

// Config carries everything the process needs to wire itself.
type Config struct {
	Addr string

	// PGDSN enables the durable Postgres stores when set; empty means the
	// in-memory stores are used.
	PGDSN string

	// RelationBackendURL is the base URL of the external permission backend.
	// Empty means the in-memory relationship store is used.
	RelationBackendURL string
	// RelationPrefix namespaces every resource/subject type string.
	RelationPrefix string
	// RelationTimeout bounds each call to the permission backend.
	RelationTimeout time.Duration

	// ChannelRegistrarURL is the base URL of the channel metadata service.
	ChannelRegistrarURL string

	// Namespace is the default token namespace served by this process.
	Namespace string

	// UserTokenTTL is the lifetime applied when a user-token request omits
	// expiresIn.
	UserTokenTTL time.Duration

	// SystemAudience is the audience claim stamped on system tokens.
	SystemAudience string

	// SignerServices is the allow-list for signSystemJWT callers.
	SignerServices []string
	// RegistryServices is the allow-list for the registry createSystem path.
	RegistryServices []string
}

// Load reads configuration from the environment, consulting a .env file when
// one is present in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:                getEnv("ADDR", ":8080"),
		PGDSN:               getEnv("PG_DSN", ""),
		RelationBackendURL:  getEnv("RELATION_BACKEND_URL", ""),
		RelationPrefix:      getEnv("RELATION_PREFIX", "catalyst"),
		ChannelRegistrarURL: getEnv("CHANNEL_REGISTRAR_URL", ""),
		Namespace:           getEnv("NAMESPACE", "default"),
		SystemAudience:      getEnv("SYSTEM_AUDIENCE", "system"),
		SignerServices:      getEnvList("SIGNER_SERVICES", defaultSignerServices),
		RegistryServices:    getEnvList("REGISTRY_SERVICES", defaultRegistryServices),
	}

	var err error
	cfg.RelationTimeout, err = getEnvDuration("RELATION_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.UserTokenTTL, err = getEnvDuration("USER_TOKEN_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}

	if cfg.RelationPrefix == "" {
		return Config{}, fmt.Errorf("config: %sRELATION_PREFIX must not be empty", envPrefix)
	}
	if cfg.Namespace == "" {
		return Config{}, fmt.Errorf("config: %sNAMESPACE must not be empty", envPrefix)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

// getEnvList splits a comma-separated value. Entries are trimmed of the
// surrounding separator whitespace only; the names themselves are preserved
// byte-for-byte because allow-list matching is exact.
func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %s%s=%q", envPrefix, key, raw)
	}
	return d, nil
}
