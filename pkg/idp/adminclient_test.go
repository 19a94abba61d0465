package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminClient(t *testing.T, handler http.Handler) (*RESTAdminClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// No client credentials: the test server does not check auth
	client, err := NewRESTAdminClient(context.Background(), RESTAdminConfig{
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return client, server
}

func TestAdminClaim(t *testing.T) {
	client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/sub-1/claims", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"admin": true})
	}))

	admin, err := client.AdminClaim(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, admin)
}

func TestSetAdminClaim(t *testing.T) {
	var gotBody map[string]bool
	client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/sub-1/claims", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.SetAdminClaim(context.Background(), "sub-1", true))
	assert.True(t, gotBody["admin"])
}

func TestLookupByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "user@example.com", r.URL.Query().Get("email"))
			json.NewEncoder(w).Encode(map[string]string{"uid": "sub-42"})
		}))

		uid, err := client.LookupByEmail(context.Background(), "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "sub-42", uid)
	})

	t.Run("404 maps to ErrAccountNotFound", func(t *testing.T) {
		client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.LookupByEmail(context.Background(), "missing@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("empty uid maps to ErrAccountNotFound", func(t *testing.T) {
		client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"uid": ""})
		}))

		_, err := client.LookupByEmail(context.Background(), "missing@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestCreateAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/users", r.URL.Path)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "new@example.com", body["email"])
			assert.Equal(t, true, body["email_verified"])

			json.NewEncoder(w).Encode(map[string]string{"uid": "sub-new"})
		}))

		uid, err := client.CreateAccount(context.Background(), "new@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "sub-new", uid)
	})

	t.Run("server error surfaces status", func(t *testing.T) {
		client, _ := newTestAdminClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		_, err := client.CreateAccount(context.Background(), "new@example.com", "secret")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestNewRESTAdminClientValidation(t *testing.T) {
	_, err := NewRESTAdminClient(context.Background(), RESTAdminConfig{})
	assert.Error(t, err)
}
