package request

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wikibridge/pkg/tracker"
)

func TestGet_Sequential(t *testing.T) {
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)

		// Same host means same provider queue.
		if current > 1 {
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client := New(tracker.New(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(context.Background(), svr.URL); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestGet_NoRetryByDefault(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	tr := tracker.New()
	client := New(tr, Options{})

	_, err := client.Get(context.Background(), svr.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", se.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	for _, s := range tr.Snapshot() {
		if s.APIFailures != 1 {
			t.Errorf("Expected 1 tracked failure, got %d", s.APIFailures)
		}
	}
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	client := New(tracker.New(), Options{Retries: 2, BaseDelay: time.Millisecond})

	body, err := client.Get(context.Background(), svr.URL)
	if err != nil {
		t.Fatalf("Expected success after retry, got error: %v", err)
	}
	if string(body) != "success" {
		t.Errorf("Expected 'success', got '%s'", string(body))
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	client := New(tracker.New(), Options{Retries: 3, BaseDelay: time.Millisecond})

	_, err := client.Get(context.Background(), svr.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 StatusError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestPostWithHeaders(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Expected Accept header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "custom-agent" {
			t.Errorf("Expected custom UA, got %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		if len(b) != 0 {
			t.Errorf("Expected empty body, got %q", string(b))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer svr.Close()

	client := New(tracker.New(), Options{UserAgent: "custom-agent"})
	body, err := client.PostWithHeaders(context.Background(), svr.URL+"?ids=Q42", nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		t.Fatalf("PostWithHeaders failed: %v", err)
	}
	if string(body) != "{}" {
		t.Errorf("Unexpected body %q", string(body))
	}
}

func TestGet_InvalidURL(t *testing.T) {
	client := New(nil, Options{})
	if _, err := client.Get(context.Background(), "not-a-url"); err == nil {
		t.Error("Expected error for relative url")
	}
}

func TestGet_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer svr.Close()
	defer close(release)

	client := New(tracker.New(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, svr.URL); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestGet_FullProviderQueueDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer fast.Close()

	client := New(tracker.New(), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	// One request in flight, a full buffer, and callers blocked on the send.
	var wg sync.WaitGroup
	for i := 0; i < 105; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Get(ctx, slow.URL)
		}()
	}
	defer func() {
		cancel()
		close(release)
		wg.Wait()
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Slow provider never received a request")
	}
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), fast.URL)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Get to other provider failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request to other provider stalled behind a full queue")
	}
}
