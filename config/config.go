// Package config holds the engine's global, host-level configuration
// record (spec.md §6 "Configuration (global)"), grounded on the shape of
// the teacher's config.Config / config.MainConfig (config/config.go):
// validated Opt* value types instead of raw strings, and a package-level
// default that callers copy and override rather than build from scratch.
package config

import (
	"context"
	"net/http"
	"time"
)

// DefaultTimeout is the default transport timeout applied by the remote
// adapter when a call does not specify its own, grounded on the teacher's
// DefaultConnectTimeout convention in httpconfig.
const DefaultTimeout = 10 * time.Second

// HeaderProvider returns the headers to attach to every remote-adapter
// request. Spec.md §6 allows this to be "sync or async"; modeling it as a
// context-taking function that can return an error covers both: a
// synchronous provider simply ignores ctx and never blocks.
type HeaderProvider func(ctx context.Context) (http.Header, error)

// ErrorHook is the global error callback (spec.md §6 "onError(error,
// operation, meta)"). meta is an engineerrors.Meta value, typed as
// interface{} here to avoid an import cycle between config and
// engineerrors (engineerrors has no need to know about config).
type ErrorHook func(err error, operation string, meta interface{})

// Config is the global, host-level configuration record. It is configured
// once at startup; subsequent reconfiguration via Set applies to subsequent
// operations only, never retroactively to in-flight calls (spec.md §6).
type Config struct {
	BaseURL    OptAbsoluteURL
	GetHeaders HeaderProvider
	OnError    ErrorHook
	Timeout    OptDuration
}

var current = Default()

// Default returns the engine's baked-in configuration: no base URL, no
// headers, a no-op error hook.
func Default() Config {
	return Config{
		GetHeaders: func(context.Context) (http.Header, error) { return nil, nil },
		OnError:    func(error, string, interface{}) {},
	}
}

// Set replaces the active global configuration. Existing stores read
// config.Current() lazily on each operation, so this takes effect for
// subsequent calls without needing to notify anything.
func Set(c Config) { current = c }

// Current returns the active global configuration.
func Current() Config { return current }
