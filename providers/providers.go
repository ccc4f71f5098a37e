// Package providers collects the factories of every built-in backend.
package providers

import (
	"github.com/kbukum/glowbook/cloud"
	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/providers/firebase"
	"github.com/kbukum/glowbook/providers/local"
	"github.com/kbukum/glowbook/providers/restapi"
	"github.com/kbukum/glowbook/providers/supabase"
)

// Factories returns the factory of each built-in provider keyed by its
// registration name. Candidates such as supabase_alt resolve to one of
// these names through cloud.Config.
func Factories(log *logger.Logger, metrics *observability.ProviderMetrics) map[string]cloud.Factory {
	return map[string]cloud.Factory{
		cloud.NameSupabase: supabase.Factory(log, metrics),
		cloud.NameFirebase: firebase.Factory(log, metrics),
		cloud.NameREST:     restapi.Factory(log, metrics),
		cloud.NameLocal:    local.Factory(log, metrics),
	}
}

// Source adapts Factories to cloud.FactorySource.
func Source(log *logger.Logger, metrics *observability.ProviderMetrics) cloud.FactorySource {
	return func() map[string]cloud.Factory { return Factories(log, metrics) }
}
