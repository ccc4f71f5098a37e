package cloud

import "strings"

// DefaultPriority is the candidate order used when Config.Priority is empty:
// the primary hosted backend, an alternate project on the same backend, the
// other hosted backends and finally the embedded local store.
var DefaultPriority = []string{"supabase", "supabase_alt", NameFirebase, NameREST, NameLocal}

// requiredCredentials lists the keys a candidate must configure to be tried.
var requiredCredentials = map[string][]string{
	NameSupabase: {"url", "anon_key"},
	NameFirebase: {"project_id", "api_key"},
	NameREST:     {"base_url", "api_key"},
	NameLocal:    {"dsn"},
}

// Config selects and configures the backends the Service may use.
//
// Providers is keyed by candidate label. A label maps to the provider of the
// same name, or to the part before the first underscore ("supabase_alt" is a
// supabase candidate). An explicit "provider" credential overrides both.
type Config struct {
	Priority        []string                     `mapstructure:"priority" json:"priority"`
	StandbyFallback bool                         `mapstructure:"standby_fallback" json:"standbyFallback"`
	Providers       map[string]map[string]string `mapstructure:"providers" json:"-"`
}

// ApplyDefaults sets the default priority.
func (c *Config) ApplyDefaults() {
	if len(c.Priority) == 0 {
		c.Priority = append([]string(nil), DefaultPriority...)
	}
}

// Candidate is one entry of the startup priority list.
type Candidate struct {
	Label    string
	Provider ProviderConfig
}

// Candidates returns the configured candidates in priority order. Labels
// without their required credentials are left out.
func (c Config) Candidates() []Candidate {
	priority := c.Priority
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	var out []Candidate
	seen := make(map[string]bool, len(priority))
	for _, label := range priority {
		if seen[label] {
			continue
		}
		seen[label] = true
		creds, ok := c.Providers[label]
		if !ok {
			continue
		}
		name := providerName(label, creds)
		if !configured(name, creds) {
			continue
		}
		out = append(out, Candidate{
			Label:    label,
			Provider: ProviderConfig{Name: name, Credentials: credentialsFor(creds)},
		})
	}
	return out
}

func providerName(label string, creds map[string]string) string {
	if p := creds["provider"]; p != "" {
		return p
	}
	if _, ok := requiredCredentials[label]; ok {
		return label
	}
	if i := strings.IndexByte(label, '_'); i > 0 {
		return label[:i]
	}
	return label
}

func configured(name string, creds map[string]string) bool {
	required, ok := requiredCredentials[name]
	if !ok {
		for k, v := range creds {
			if k != "provider" && v != "" {
				return true
			}
		}
		return false
	}
	for _, key := range required {
		if strings.TrimSpace(creds[key]) == "" {
			return false
		}
	}
	return true
}

func credentialsFor(creds map[string]string) map[string]string {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		if k == "provider" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
