package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPublished(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"components": [
				{"key": "btn", "name": "Button", "version": "2.1.0", "snapshot": {"componentKey": "btn"}},
				{"key": "card", "name": "Card", "version": "1.0.0", "snapshot": {"componentKey": "card"}}
			]
		}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret-token")
	require.NoError(t, err)

	components, err := client.ListPublished(context.Background(), "file-1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/files/file-1/components", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	require.Len(t, components, 2)
	assert.Equal(t, "btn", components[0].Key)
	assert.Equal(t, "2.1.0", components[0].Version)
	assert.Equal(t, "btn", components[0].Snapshot.ComponentKey)
}

func TestListPublishedErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	require.NoError(t, err)

	_, err = client.ListPublished(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestListPublishedValidation(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)

	client, err := NewClient("http://localhost:1", "")
	require.NoError(t, err)
	_, err = client.ListPublished(context.Background(), "")
	assert.Error(t, err)
}
