package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/seva-trust/donorportal/api"
	"github.com/seva-trust/donorportal/session/credentials/storefake"
	"github.com/seva-trust/donorportal/token"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls   int32
	succeed bool
	store   *storefake.Store
	next    string
}

func (f *fakeRefresher) Refresh(_ context.Context) bool {
	atomic.AddInt32(&f.calls, 1)
	if f.succeed && f.store != nil {
		f.store.SetAccess(f.next)
	}
	return f.succeed
}

func newClient(t *testing.T, srv *httptest.Server, store *storefake.Store) *api.Client {
	t.Helper()
	client, err := api.New(srv.URL, nil, store)
	require.NoError(t, err)
	return client
}

func TestMessageNormalizationPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail wins", `{"detail":"token invalid","non_field_errors":["other"],"message":"m"}`, "token invalid"},
		{"non_field_errors second", `{"non_field_errors":["bad credentials"],"message":"m"}`, "bad credentials"},
		{"message third", `{"message":"already a member"}`, "already a member"},
		{"field errors last", `{"username":["username taken"],"email":["email taken"]}`, "email taken"},
		{"empty body falls back", ``, api.NetworkErrorMessage},
		{"non-json falls back", `<html>gateway timeout</html>`, api.NetworkErrorMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := newClient(t, srv, storefake.NewStore())

			_, err := client.Token(context.Background(), "user", "pass")
			require.Error(t, err)
			require.Equal(t, tc.want, api.UserMessage(err))
		})
	}
}

func TestBearerHeaderAttached(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"user_info":{"id":1,"username":"asha"}}`))
	}))
	defer srv.Close()

	store := storefake.NewStoreWith(token.Pair{Access: "acc-1", Refresh: "ref-1"})
	client := newClient(t, srv, store)

	_, err := client.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer acc-1", got)
}

func TestSingleRefreshRetryOn401(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			require.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user_info":{"id":1,"username":"asha"}}`))
	}))
	defer srv.Close()

	store := storefake.NewStoreWith(token.Pair{Access: "stale", Refresh: "ref-1"})
	client := newClient(t, srv, store)
	refresher := &fakeRefresher{succeed: true, store: store, next: "fresh"}
	client.SetRefresher(refresher)

	user, err := client.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "asha", user.Username)
	require.EqualValues(t, 1, refresher.calls)
	require.EqualValues(t, 2, requests)
}

func TestSecond401Propagates(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token invalid"}`))
	}))
	defer srv.Close()

	store := storefake.NewStoreWith(token.Pair{Access: "stale", Refresh: "ref-1"})
	client := newClient(t, srv, store)
	refresher := &fakeRefresher{succeed: true, store: store, next: "still-stale"}
	client.SetRefresher(refresher)

	_, err := client.Dashboard(context.Background())
	require.Error(t, err)
	require.True(t, api.IsUnauthorized(err))
	require.Equal(t, "token invalid", api.UserMessage(err))
	require.EqualValues(t, 1, refresher.calls, "exactly one refresh per request")
	require.EqualValues(t, 2, requests)
}

func TestFailedRefreshSkipsRetry(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := storefake.NewStoreWith(token.Pair{Access: "stale"})
	client := newClient(t, srv, store)
	client.SetRefresher(&fakeRefresher{succeed: false})

	_, err := client.Dashboard(context.Background())
	require.Error(t, err)
	require.EqualValues(t, 1, requests, "no retry after failed refresh")
}

func TestVerifyTokenNeverTriggersRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := storefake.NewStoreWith(token.Pair{Access: "acc"})
	client := newClient(t, srv, store)
	refresher := &fakeRefresher{succeed: true}
	client.SetRefresher(refresher)

	err := client.VerifyToken(context.Background(), "some-token")
	require.Error(t, err)
	require.EqualValues(t, 0, refresher.calls)
}

func TestConflictDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"already a member"}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, storefake.NewStore())

	_, err := client.PaymentInit(context.Background(), api.PaymentInitRequest{})
	require.Error(t, err)
	require.True(t, api.IsConflict(err))
	require.Equal(t, "already a member", api.UserMessage(err))
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := newClient(t, srv, storefake.NewStore())

	_, err := client.Token(context.Background(), "user", "pass")
	require.Error(t, err)
	require.Zero(t, api.StatusCode(err))
	require.Equal(t, api.NetworkErrorMessage, api.UserMessage(err))
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := api.New("not-a-url", nil, storefake.NewStore())
	require.Error(t, err)

	_, err = api.New("http://localhost:9", nil, nil)
	require.Error(t, err)
}
