package preflight

import (
	"context"
	"strings"

	"subtrans/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// LocalChecks runs the checks that need no network access.
func LocalChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBinary("FFprobe", cfg.FFprobeBinary(), true),
	}
}

// RunAll executes every applicable check for the given config. keys are the
// provider keys to test; the configured keys are used when none are given.
func RunAll(ctx context.Context, cfg *config.Config, keys []string) []Result {
	if cfg == nil {
		return nil
	}

	results := LocalChecks(cfg)
	if len(keys) == 0 {
		keys = cfg.Provider.APIKeys
	}
	results = append(results, CheckProvider(ctx, cfg.Provider, keys))

	if cfg.Broker.Enabled {
		results = append(results, CheckBroker(ctx, cfg.Broker.URL))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		results = append(results, Result{Name: "Notifications", Passed: true, Optional: true, Detail: "Disabled"})
	} else {
		results = append(results, Result{Name: "Notifications", Passed: true, Optional: true, Detail: "ntfy topic configured"})
	}
	return results
}

// Failed returns the results that did not pass, optional ones included.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
