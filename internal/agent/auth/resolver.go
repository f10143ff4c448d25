package auth

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/remoteclaw/remoteclaw/internal/common/logger"
)

// ProviderBedrock gets an AWS SDK fallback when no profile matches.
const ProviderBedrock = "amazon-bedrock"

// ProfileConfig is the operator-side description of a profile: which
// provider it serves and in which auth mode the key is injected.
type ProfileConfig struct {
	Provider string `mapstructure:"provider" json:"provider"`
	Mode     Mode   `mapstructure:"mode" json:"mode"`
}

// Config is the operator-side auth configuration.
type Config struct {
	// StorePath locates the auth store JSON file.
	StorePath string `mapstructure:"storePath" json:"storePath"`
	// Order overrides profile ordering per provider when the store has none.
	Order map[string][]string `mapstructure:"order" json:"order,omitempty"`
	// Profiles carries per-profile mode/provider overrides.
	Profiles map[string]ProfileConfig `mapstructure:"profiles" json:"profiles,omitempty"`
}

// Resolver computes which credential a runtime should use for a provider.
type Resolver struct {
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// NewResolver creates a resolver over the given configuration.
func NewResolver(cfg Config, log *logger.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		logger: log.WithFields(zap.String("component", "auth-resolver")),
		now:    time.Now,
	}
}

// ProfileOrder returns the profile ids to try for provider, most preferred
// first. Ordering: store order, else configured order, else every profile
// whose credential matches the provider; round-robin by ascending lastUsed;
// profiles in cooldown or disabled keep their relative order but follow all
// available ones.
func (r *Resolver) ProfileOrder(store *Store, provider string) []string {
	base := r.baseOrder(store, provider)

	eligible := make([]string, 0, len(base))
	for _, id := range base {
		cred, ok := store.Profiles[id]
		if !ok || cred.Provider != provider {
			continue
		}
		if !r.modeCompatible(id, cred) {
			continue
		}
		eligible = append(eligible, id)
	}

	lastUsed := func(id string) int64 {
		return store.UsageStats[id].LastUsed
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return lastUsed(eligible[i]) < lastUsed(eligible[j])
	})

	nowMS := r.now().UnixMilli()
	available := make([]string, 0, len(eligible))
	var unavailable []string
	for _, id := range eligible {
		stats := store.UsageStats[id]
		if nowMS < stats.CooldownUntil || nowMS < stats.DisabledUntil {
			unavailable = append(unavailable, id)
		} else {
			available = append(available, id)
		}
	}
	return append(available, unavailable...)
}

func (r *Resolver) baseOrder(store *Store, provider string) []string {
	if order, ok := store.Order[provider]; ok {
		return order
	}
	if order, ok := r.cfg.Order[provider]; ok {
		return order
	}
	ids := make([]string, 0, len(store.Profiles))
	for id, cred := range store.Profiles {
		if cred.Provider == provider {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// modeCompatible checks the configured profile against the stored
// credential. A configured oauth mode accepts a token credential; older
// stores recorded OAuth tokens under type "token".
func (r *Resolver) modeCompatible(id string, cred Credential) bool {
	pc, ok := r.cfg.Profiles[id]
	if !ok {
		return true
	}
	if pc.Provider != "" && pc.Provider != cred.Provider {
		return false
	}
	switch pc.Mode {
	case "", ModeAPIKey:
		if pc.Mode == "" {
			return true
		}
		return cred.Type == CredentialAPIKey
	case ModeToken:
		return cred.Type == CredentialToken
	case ModeOAuth:
		return cred.Type == CredentialToken
	default:
		return false
	}
}

// ResolveKeyForProfile extracts a usable secret from the profile, or returns
// ok=false when the credential is blank or the token has expired.
func (r *Resolver) ResolveKeyForProfile(store *Store, id string) (key, provider, email string, ok bool) {
	cred, found := store.Profiles[id]
	if !found {
		return "", "", "", false
	}
	switch cred.Type {
	case CredentialAPIKey:
		k := strings.TrimSpace(cred.Key)
		if k == "" {
			return "", "", "", false
		}
		return k, cred.Provider, cred.Email, true
	case CredentialToken:
		t := strings.TrimSpace(cred.Token)
		if t == "" {
			return "", "", "", false
		}
		if cred.Expires > 0 && cred.Expires <= r.now().UnixMilli() {
			return "", "", "", false
		}
		return t, cred.Provider, cred.Email, true
	}
	return "", "", "", false
}

// ResolveForProvider walks the ordered profiles and returns the first usable
// credential. Bedrock falls back to the AWS SDK environment; any other
// provider without a usable profile fails with a diagnostic naming the store
// file.
func (r *Resolver) ResolveForProvider(store *Store, provider string) (Resolved, error) {
	for _, id := range r.ProfileOrder(store, provider) {
		key, _, email, ok := r.ResolveKeyForProfile(store, id)
		if !ok {
			continue
		}
		mode := ModeAPIKey
		if store.Profiles[id].Type == CredentialToken {
			mode = ModeToken
		}
		if pc, found := r.cfg.Profiles[id]; found && pc.Mode == ModeOAuth {
			mode = ModeOAuth
		}
		r.logger.Debug("resolved credential profile",
			zap.String("provider", provider),
			zap.String("profile", id),
			zap.String("mode", string(mode)))
		return Resolved{
			Mode:      mode,
			APIKey:    key,
			ProfileID: id,
			Email:     email,
			Source:    fmt.Sprintf("profile:%s", id),
		}, nil
	}

	if provider == ProviderBedrock {
		return resolveBedrockEnv(), nil
	}

	return Resolved{}, fmt.Errorf(
		"no usable credential for provider %q in %s; add one with `remoteclaw auth add --provider %s`",
		provider, r.cfg.StorePath, provider)
}

// resolveBedrockEnv picks the strongest AWS credential source present in the
// environment: bearer token, then access key pair, then a named profile,
// then the SDK default chain.
func resolveBedrockEnv() Resolved {
	switch {
	case os.Getenv("AWS_BEARER_TOKEN_BEDROCK") != "":
		return Resolved{Mode: ModeAWSSDK, Source: "env:AWS_BEARER_TOKEN_BEDROCK"}
	case os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "":
		return Resolved{Mode: ModeAWSSDK, Source: "env:AWS_ACCESS_KEY_ID"}
	case os.Getenv("AWS_PROFILE") != "":
		return Resolved{Mode: ModeAWSSDK, Source: "env:AWS_PROFILE"}
	default:
		return Resolved{Mode: ModeAWSSDK, Source: "aws-sdk-default-chain"}
	}
}

