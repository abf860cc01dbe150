package remote

import (
	"context"
	"net/http"

	"github.com/pathstate/engine/adapter"
	"github.com/pathstate/engine/record"
)

// Doer performs one HTTP round trip. *Client and *QueuedClient both satisfy
// it, so a collection or single adapter can be pointed at either without
// changing any operation logic.
type Doer interface {
	Do(ctx context.Context, method string, urlStr string, body interface{}) (RawResponse, error)
}

// CollectionConfig describes how to reach a keyed collection over HTTP.
// ListPath and ItemPath are URL templates consumed by BuildURL; ItemPath
// conventionally contains a ":id" placeholder.
type CollectionConfig struct {
	Transport Doer
	BaseURL   string
	ListPath  string
	ItemPath  string
	Envelope  Envelope
}

// NewCollectionAdapter builds the remote operation bag for a keyed
// collection (spec.md §4.5 "Remote adapter"). Every operation issues one
// HTTP round trip via the shared Client.
func NewCollectionAdapter[T record.Identifiable](cfg CollectionConfig) adapter.CollectionAdapter[T] {
	return adapter.CollectionAdapter[T]{
		GetAll: func(ctx context.Context, params adapter.Params) ([]T, error) {
			u, err := BuildURL(cfg.BaseURL, cfg.ListPath, params)
			if err != nil {
				return nil, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, err
			}
			return Unwrap[[]T](raw.Body, cfg.Envelope)
		},
		GetOne: func(ctx context.Context, id string, params adapter.Params) (T, error) {
			var zero T
			withID := params.Clone()
			if withID == nil {
				withID = adapter.Params{}
			}
			withID["id"] = id
			u, err := BuildURL(cfg.BaseURL, cfg.ItemPath, withID)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodGet, u, nil)
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Create: func(ctx context.Context, value T, params adapter.Params) (T, error) {
			var zero T
			u, err := BuildURL(cfg.BaseURL, cfg.ListPath, params)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodPost, u, cfg.Envelope.Wrap(value))
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Patch: func(ctx context.Context, id string, partial map[string]interface{}, params adapter.Params) (T, error) {
			var zero T
			withID := params.Clone()
			if withID == nil {
				withID = adapter.Params{}
			}
			withID["id"] = id
			u, err := BuildURL(cfg.BaseURL, cfg.ItemPath, withID)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodPatch, u, cfg.Envelope.Wrap(partial))
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Delete: func(ctx context.Context, id string, params adapter.Params) error {
			withID := params.Clone()
			if withID == nil {
				withID = adapter.Params{}
			}
			withID["id"] = id
			u, err := BuildURL(cfg.BaseURL, cfg.ItemPath, withID)
			if err != nil {
				return err
			}
			_, err = cfg.Transport.Do(ctx, http.MethodDelete, u, nil)
			return err
		},
	}
}

// SingleConfig describes how to reach a single-value resource over HTTP.
type SingleConfig struct {
	Transport Doer
	BaseURL   string
	Path      string
	Envelope  Envelope
}

// NewSingleAdapter builds the remote operation bag for a single-value
// resource (spec.md §4.5 "Remote adapter").
func NewSingleAdapter[T any](cfg SingleConfig) adapter.SingleAdapter[T] {
	return adapter.SingleAdapter[T]{
		Get: func(ctx context.Context, params adapter.Params) (T, error) {
			var zero T
			u, err := BuildURL(cfg.BaseURL, cfg.Path, params)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodGet, u, nil)
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Set: func(ctx context.Context, value T, params adapter.Params) (T, error) {
			var zero T
			u, err := BuildURL(cfg.BaseURL, cfg.Path, params)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodPut, u, cfg.Envelope.Wrap(value))
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Patch: func(ctx context.Context, partial map[string]interface{}, params adapter.Params) (T, error) {
			var zero T
			u, err := BuildURL(cfg.BaseURL, cfg.Path, params)
			if err != nil {
				return zero, err
			}
			raw, err := cfg.Transport.Do(ctx, http.MethodPatch, u, cfg.Envelope.Wrap(partial))
			if err != nil {
				return zero, err
			}
			return Unwrap[T](raw.Body, cfg.Envelope)
		},
		Delete: func(ctx context.Context, params adapter.Params) error {
			u, err := BuildURL(cfg.BaseURL, cfg.Path, params)
			if err != nil {
				return err
			}
			_, err = cfg.Transport.Do(ctx, http.MethodDelete, u, nil)
			return err
		},
	}
}
