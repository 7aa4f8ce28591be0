package docketwise

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient(ts *httptest.Server) (*Client, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	return &Client{
		BaseURL:    ts.URL,
		HTTPClient: ts.Client(),
		Sleep: func(d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
	}, sleeps
}

func TestFetchWithRetryBackoff(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	client, sleeps := newTestClient(ts)

	body, _, err := client.FetchWithRetry(context.Background(), "/matters/1")
	assert.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 3, calls)

	// Backoff must grow: 2^(attempt+1) seconds
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestFetchWithRetryExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(419)
	}))
	defer ts.Close()

	client, sleeps := newTestClient(ts)

	_, _, err := client.FetchWithRetry(context.Background(), "/matters")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, *sleeps, MaxRetries)
}

func TestFetchWithRetryAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client, sleeps := newTestClient(ts)

	_, _, err := client.FetchWithRetry(context.Background(), "/matters")
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	// Non-rate-limit failures must not trigger backoff
	assert.Empty(t, *sleeps)
}

func TestFetchWithSmartRetry(t *testing.T) {
	t.Run("recovers after one wait", func(t *testing.T) {
		calls := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`[]`))
		}))
		defer ts.Close()

		client, sleeps := newTestClient(ts)

		_, _, err := client.FetchWithSmartRetry(context.Background(), "/matters/7")
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []time.Duration{2 * time.Minute}, *sleeps)
	})

	t.Run("gives up after the single retry", func(t *testing.T) {
		calls := 0
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		client, _ := newTestClient(ts)

		_, _, err := client.FetchWithSmartRetry(context.Background(), "/matters/7")
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 2, calls)
	})
}

func TestPaginationHeader(t *testing.T) {
	next := 2
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagination", `{"total":450,"next_page":2,"previous_page":null,"total_pages":3}`)
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts)

	_, pagination, err := client.FetchWithRetry(context.Background(), "/matters")
	assert.NoError(t, err)
	assert.NotNil(t, pagination)
	assert.Equal(t, 450, pagination.Total)
	assert.Equal(t, &next, pagination.NextPage)
	assert.True(t, pagination.HasNext())
}

func TestPaginationHeaderAbsent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts)

	_, pagination, err := client.FetchWithRetry(context.Background(), "/matters")
	assert.NoError(t, err)
	assert.Nil(t, pagination)
	assert.False(t, pagination.HasNext())
}

func TestFieldThreeStates(t *testing.T) {
	type payload struct {
		Title   Field[string]  `json:"title"`
		UserIDs Field[[]int64] `json:"user_ids"`
	}

	t.Run("present", func(t *testing.T) {
		var p payload
		assert.NoError(t, json.Unmarshal([]byte(`{"title":"I-485 AOS","user_ids":[4,9]}`), &p))
		assert.True(t, p.Title.Present())
		assert.Equal(t, "I-485 AOS", p.Title.Value)
		assert.Equal(t, []int64{4, 9}, p.UserIDs.Value)
	})

	t.Run("explicit null", func(t *testing.T) {
		var p payload
		assert.NoError(t, json.Unmarshal([]byte(`{"title":null}`), &p))
		assert.True(t, p.Title.Set)
		assert.False(t, p.Title.Valid)
		assert.False(t, p.Title.Present())
	})

	t.Run("absent", func(t *testing.T) {
		var p payload
		assert.NoError(t, json.Unmarshal([]byte(`{}`), &p))
		assert.False(t, p.Title.Set)
		assert.False(t, p.UserIDs.Set)
	})
}

func TestStatusValueForms(t *testing.T) {
	var obj StatusValue
	assert.NoError(t, json.Unmarshal([]byte(`{"id":12,"name":"RFE Received"}`), &obj))
	assert.Equal(t, int64(12), obj.ID)
	assert.Equal(t, "RFE Received", obj.Name)

	var raw StatusValue
	assert.NoError(t, json.Unmarshal([]byte(`"Case Evaluation"`), &raw))
	assert.Equal(t, int64(0), raw.ID)
	assert.Equal(t, "Case Evaluation", raw.Name)
}
