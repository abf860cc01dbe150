package push

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pathstate/engine/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	IDValue string `json:"id"`
	Name    string `json:"name"`
}

func (w widget) ID() string { return w.IDValue }

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprint(w, e)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
		<-r.Context().Done()
	}))
}

func sseFrame(event string, data interface{}) string {
	raw, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, raw)
}

func TestClientDeliversDecodedUpsertEvents(t *testing.T) {
	srv := sseServer(t, []string{
		sseFrame("upsert", widget{IDValue: "1", Name: "gear"}),
	})
	defer srv.Close()

	client := NewClient(Config[widget]{
		URL:  srv.URL,
		Mode: adapter.PushUpsert,
		Decode: func(eventName string, data []byte) ([]widget, error) {
			var w widget
			if err := json.Unmarshal(data, &w); err != nil {
				return nil, err
			}
			return []widget{w}, nil
		},
	})

	received := make(chan adapter.PushEvent[widget], 1)
	unsubscribe := client.Subscribe(func(evt adapter.PushEvent[widget]) {
		received <- evt
	})
	defer unsubscribe()

	select {
	case evt := <-received:
		assert.Equal(t, adapter.PushUpsert, evt.Mode)
		require.Len(t, evt.Items, 1)
		assert.Equal(t, "gear", evt.Items[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push event")
	}
}

func TestClientFiltersEventNamesNotInFilter(t *testing.T) {
	srv := sseServer(t, []string{
		sseFrame("ignored", widget{IDValue: "1"}),
		sseFrame("upsert", widget{IDValue: "2", Name: "kept"}),
	})
	defer srv.Close()

	client := NewClient(Config[widget]{
		URL:         srv.URL,
		Mode:        adapter.PushUpsert,
		EventFilter: map[string]bool{"upsert": true},
		Decode: func(eventName string, data []byte) ([]widget, error) {
			var w widget
			if err := json.Unmarshal(data, &w); err != nil {
				return nil, err
			}
			return []widget{w}, nil
		},
	})

	received := make(chan adapter.PushEvent[widget], 2)
	unsubscribe := client.Subscribe(func(evt adapter.PushEvent[widget]) {
		received <- evt
	})
	defer unsubscribe()

	select {
	case evt := <-received:
		require.Len(t, evt.Items, 1)
		assert.Equal(t, "kept", evt.Items[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push event")
	}
}

func TestSetHiddenDropsEventsWhileHidden(t *testing.T) {
	srv := sseServer(t, []string{
		sseFrame("upsert", widget{IDValue: "1", Name: "during-hidden"}),
	})
	defer srv.Close()

	client := NewClient(Config[widget]{
		URL:           srv.URL,
		Mode:          adapter.PushUpsert,
		PauseOnHidden: true,
		Decode: func(eventName string, data []byte) ([]widget, error) {
			var w widget
			if err := json.Unmarshal(data, &w); err != nil {
				return nil, err
			}
			return []widget{w}, nil
		},
	})

	received := make(chan adapter.PushEvent[widget], 1)
	unsubscribe := client.Subscribe(func(evt adapter.PushEvent[widget]) {
		received <- evt
	})
	defer unsubscribe()

	client.SetHidden(true)

	select {
	case <-received:
		t.Fatal("expected no event to be delivered while hidden")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientSkipsMalformedEventAndKeepsStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: upsert\ndata: not-json\n\n")
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
		fmt.Fprint(w, sseFrame("upsert", widget{IDValue: "1", Name: "kept"}))
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(Config[widget]{
		URL:  srv.URL,
		Mode: adapter.PushUpsert,
		Decode: func(eventName string, data []byte) ([]widget, error) {
			var w widget
			if err := json.Unmarshal(data, &w); err != nil {
				return nil, err
			}
			return []widget{w}, nil
		},
	})

	received := make(chan adapter.PushEvent[widget], 2)
	unsubscribe := client.Subscribe(func(evt adapter.PushEvent[widget]) {
		received <- evt
	})
	defer unsubscribe()

	select {
	case evt := <-received:
		require.Len(t, evt.Items, 1)
		assert.Equal(t, "kept", evt.Items[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the valid event following the malformed one")
	}
}
