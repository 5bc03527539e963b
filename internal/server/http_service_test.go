package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	listenErr error
	stopped   chan struct{}
	shutdowns atomic.Int32
}

func newFakeHTTPServer(listenErr error) *fakeHTTPServer {
	return &fakeHTTPServer{listenErr: listenErr, stopped: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopped
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stopped)
	}
	return nil
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	fake := newFakeHTTPServer(nil)
	svc := NewHTTPService(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if fake.shutdowns.Load() != 1 {
		t.Errorf("Expected one Shutdown call, got %d", fake.shutdowns.Load())
	}
}

func TestHTTPService_ListenFailure(t *testing.T) {
	svc := NewHTTPService(newFakeHTTPServer(errors.New("address in use")), 0)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Expected listen error")
	}
	if svc.String() != "http-server" {
		t.Errorf("Unexpected service name %q", svc.String())
	}
}
