package cloud

import "github.com/kbukum/glowbook/errors"

// Sentinel errors for errors.Is. AppErrors match by code, so the values
// returned by the registry and facade (which carry details) match these.
var (
	ErrProviderNotRegistered = errors.ProviderNotRegistered("")
	ErrNoProviderInitialized = errors.NoProviderInitialized()
	ErrNoActiveProvider      = errors.NoActiveProvider()
	ErrAllProvidersFailed    = errors.AllProvidersFailed(nil, nil)
	ErrCapabilityMissing     = errors.CapabilityMissing("", "")
)
