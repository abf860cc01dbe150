package config

import (
	"errors"
	"net/url"
	"time"
)

// OptAbsoluteURL is an optional URL parameter which, if present, must be an
// absolute URL. Grounded on the teacher's config.OptAbsoluteURL
// (config/config_field_types.go): validated once at construction so a typo
// in a base URL fails fast at startup rather than on first request.
//
// The zero value is valid and undefined.
type OptAbsoluteURL struct {
	url *url.URL
}

// NewOptAbsoluteURLFromString parses s into an OptAbsoluteURL. An empty
// string yields the undefined zero value.
func NewOptAbsoluteURLFromString(s string) (OptAbsoluteURL, error) {
	if s == "" {
		return OptAbsoluteURL{}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return OptAbsoluteURL{}, errors.New("not a valid URL/URI: " + s)
	}
	if !u.IsAbs() {
		return OptAbsoluteURL{}, errors.New("must be an absolute URL/URI: " + s)
	}
	return OptAbsoluteURL{url: u}, nil
}

// IsDefined reports whether a value is present.
func (o OptAbsoluteURL) IsDefined() bool { return o.url != nil }

// Get returns the wrapped URL, or nil if undefined.
func (o OptAbsoluteURL) Get() *url.URL {
	if o.url == nil {
		return nil
	}
	u := *o.url
	return &u
}

// String renders the URL, or "" if undefined.
func (o OptAbsoluteURL) String() string {
	if o.url == nil {
		return ""
	}
	return o.url.String()
}

// OptDuration is an optional duration parameter with a documented default,
// grounded on config.OptDuration used throughout the teacher's MainConfig /
// EventsConfig for TTLs and intervals.
type OptDuration struct {
	d      time.Duration
	isSet  bool
}

// NewOptDuration wraps an explicit duration.
func NewOptDuration(d time.Duration) OptDuration { return OptDuration{d: d, isSet: true} }

// IsDefined reports whether a value is present.
func (o OptDuration) IsDefined() bool { return o.isSet }

// GetOrElse returns the wrapped duration, or orElse if undefined.
func (o OptDuration) GetOrElse(orElse time.Duration) time.Duration {
	if !o.isSet {
		return orElse
	}
	return o.d
}
