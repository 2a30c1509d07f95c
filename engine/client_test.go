package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/dashboard-gateway/engine"
	"github.com/jrsteele09/dashboard-gateway/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	logins    atomic.Int32
	csrfs     atomic.Int32
	executes  atomic.Int32
	databases atomic.Int32

	mu            sync.Mutex
	executeStatus []int // consumed per execute call, 200 once exhausted
	loginStatus   int
	databaseGate  chan struct{} // when set, catalog responses wait for it to close
	lastExecute   map[string]any
	lastHeaders   http.Header
}

func (f *fakeEngine) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/security/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "svc", body["username"])
		require.Equal(t, "db", body["provider"])
		require.Equal(t, true, body["refresh"])

		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
			_, _ = w.Write([]byte(`{"message":"Not authorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "bearer-token"})
	})
	mux.HandleFunc("GET /api/v1/security/csrf_token/", func(w http.ResponseWriter, r *http.Request) {
		f.csrfs.Add(1)
		require.Equal(t, "Bearer bearer-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "csrf-token"})
	})
	mux.HandleFunc("POST /api/v1/sqllab/execute/", func(w http.ResponseWriter, r *http.Request) {
		f.executes.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.lastExecute = body
		f.lastHeaders = r.Header.Clone()
		status := http.StatusOK
		if len(f.executeStatus) > 0 {
			status = f.executeStatus[0]
			f.executeStatus = f.executeStatus[1:]
		}
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"engine says no"}`))
			return
		}
		_, _ = w.Write([]byte(`{"query_id":7,"status":"success","data":[{"UserID":42,"UserName":"jdoe"}]}`))
	})
	mux.HandleFunc("GET /api/v1/database/", func(w http.ResponseWriter, r *http.Request) {
		f.databases.Add(1)
		if f.databaseGate != nil {
			select {
			case <-f.databaseGate:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = w.Write([]byte(`{"count":2,"result":[{"id":3,"database_name":"examples"},{"id":9,"database_name":"AcmeCafe"}]}`))
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeEngine, opts ...engine.Option) (*engine.Client, engine.Settings) {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	settings := engine.Settings{
		BaseURL:          srv.URL,
		Username:         "svc",
		Password:         "secret",
		Provider:         "db",
		DatabaseID:       3,
		MaxAttempts:      3,
		RetryBase:        10 * time.Millisecond,
		RequestTimeout:   5 * time.Second,
		RefreshThreshold: 5 * time.Minute,
		SessionLifetime:  time.Hour,
		CatalogTTL:       5 * time.Minute,
	}
	return engine.NewClient(settings, opts...), settings
}

func TestClient_Execute(t *testing.T) {
	fake := &fakeEngine{}
	client, _ := newTestClient(t, fake)

	result, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{
		DatabaseID:     utils.Ptr(9),
		TemplateParams: map[string]any{"username": "jdoe"},
	})
	require.NoError(t, err)
	require.False(t, result.Empty())
	require.Equal(t, "jdoe", result.Data[0]["UserName"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, "Bearer bearer-token", fake.lastHeaders.Get("Authorization"))
	require.Equal(t, "csrf-token", fake.lastHeaders.Get("X-CSRFToken"))
	require.NotEmpty(t, fake.lastHeaders.Get("Referer"))
	require.Equal(t, "SELECT 1", fake.lastExecute["sql"])
	require.EqualValues(t, 9, fake.lastExecute["database_id"])
	require.Equal(t, "TABLE", fake.lastExecute["ctas_method"])
	require.Equal(t, `{"username":"jdoe"}`, fake.lastExecute["templateParams"])
	require.Len(t, fake.lastExecute["client_id"], 11)
}

func TestClient_ReusesSession(t *testing.T) {
	fake := &fakeEngine{}
	client, _ := newTestClient(t, fake)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, fake.logins.Load())
	require.EqualValues(t, 1, fake.csrfs.Load())
	require.EqualValues(t, 8, fake.executes.Load())
}

func TestClient_RenewsSessionAfterUnauthorized(t *testing.T) {
	fake := &fakeEngine{executeStatus: []int{http.StatusUnauthorized, http.StatusUnauthorized}}
	client, settings := newTestClient(t, fake)

	start := time.Now()
	_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, time.Since(start), 3*settings.RetryBase)
	require.EqualValues(t, 3, fake.executes.Load())
	require.EqualValues(t, 3, fake.logins.Load())
	require.EqualValues(t, 3, fake.csrfs.Load())
}

func TestClient_RenewsSessionNearExpiry(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	fake := &fakeEngine{}
	client, _ := newTestClient(t, fake, engine.WithClock(clk))

	_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
	require.NoError(t, err)
	clk.Add(50 * time.Minute)
	_, err = client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, fake.logins.Load())

	clk.Add(6 * time.Minute)
	_, err = client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.logins.Load())
	require.EqualValues(t, 1, fake.csrfs.Load())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, "csrf-token", fake.lastHeaders.Get("X-CSRFToken"))
}

func TestClient_Errors(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		fake := &fakeEngine{executeStatus: []int{http.StatusBadRequest}}
		client, _ := newTestClient(t, fake)

		_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
		var engineErr *engine.EngineError
		require.ErrorAs(t, err, &engineErr)
		require.Equal(t, http.StatusBadRequest, engineErr.Status)
		require.Equal(t, "engine says no", engineErr.Message)
		require.EqualValues(t, 1, fake.executes.Load())
	})

	t.Run("server errors exhaust retries", func(t *testing.T) {
		fake := &fakeEngine{executeStatus: []int{500, 502, 503, 504}}
		client, _ := newTestClient(t, fake)

		_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
		var engineErr *engine.EngineError
		require.ErrorAs(t, err, &engineErr)
		require.Equal(t, http.StatusServiceUnavailable, engineErr.Status)
		require.ErrorIs(t, err, engine.ErrTransport)
		require.EqualValues(t, 3, fake.executes.Load())
	})

	t.Run("rejected service credentials are not retried", func(t *testing.T) {
		fake := &fakeEngine{loginStatus: http.StatusUnauthorized}
		client, _ := newTestClient(t, fake)

		_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
		var engineErr *engine.EngineError
		require.ErrorAs(t, err, &engineErr)
		require.Equal(t, "login", engineErr.Op)
		require.EqualValues(t, 1, fake.logins.Load())
		require.EqualValues(t, 0, fake.executes.Load())
	})

	t.Run("unreachable engine", func(t *testing.T) {
		client := engine.NewClient(engine.Settings{
			BaseURL:     "http://127.0.0.1:1",
			MaxAttempts: 2,
			RetryBase:   time.Millisecond,
		})
		_, err := client.Execute(context.Background(), "SELECT 1", engine.QueryOptions{})
		require.ErrorIs(t, err, engine.ErrTransport)
	})
}

func TestClient_DatabaseCatalog(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	fake := &fakeEngine{}
	client, settings := newTestClient(t, fake, engine.WithClock(clk))
	ctx := context.Background()

	dbs, err := client.Databases(ctx)
	require.NoError(t, err)
	require.Len(t, dbs, 2)

	_, err = client.Databases(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, fake.databases.Load())

	require.Equal(t, 9, client.DatabaseID(ctx, "acmecafe"))
	require.Equal(t, 3, client.DatabaseID(ctx, "NoSuchTenant"))
	require.EqualValues(t, 1, fake.databases.Load())

	clk.Add(settings.CatalogTTL)
	_, err = client.Databases(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.databases.Load())

	_, err = client.RefreshDatabases(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, fake.databases.Load())
}

func TestClient_DatabaseCatalog_CallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeEngine{databaseGate: gate}
	client, _ := newTestClient(t, fake)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Databases(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return fake.databases.Load() == 1
	}, time.Second, time.Millisecond)

	type result struct {
		dbs []engine.Database
		err error
	}
	second := make(chan result, 1)
	go func() {
		dbs, err := client.Databases(context.Background())
		second <- result{dbs: dbs, err: err}
	}()
	// Let the second caller join the pending fetch.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gate)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Len(t, res.dbs, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}
	require.EqualValues(t, 1, fake.databases.Load())
	require.Equal(t, 9, client.DatabaseID(context.Background(), "AcmeCafe"))
	require.EqualValues(t, 1, fake.databases.Load())
}
