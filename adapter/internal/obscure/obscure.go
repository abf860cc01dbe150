// Package obscure redacts credential-shaped strings before they reach a log
// line, grounded on internal/sdks/obscure_key.go (ObscureKey) and the
// SDK-key-obfuscating regexes in internal/autoconfig/stream_manager.go
// (obfuscateEventData). Adapters use this so debug logging of headers and
// push payloads never leaks the raw value of a credential.
package obscure

import "strings"

// Key returns an obfuscated form of key, preserving only its trailing 4
// characters (spec.md §9 "obfuscated debug logging of credentials").
func Key(key string) string {
	if len(key) <= 4 {
		return key
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
