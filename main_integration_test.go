package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/handlers"
	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/usecase"
	"github.com/example/faces-api/internal/validation"
)

type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(ctx context.Context, sub usecase.Submission) (*usecase.SubmitResult, error) {
	select {
	case <-b.started:
	default:
		close(b.started)
	}
	<-b.release
	return &usecase.SubmitResult{URL: "https://cdn.example.com/photo.jpg"}, nil
}

type emptyFinder struct{}

func (emptyFinder) FindInBox(ctx context.Context, box validation.BoundingBox) ([]*repository.PhotoRecord, error) {
	return []*repository.PhotoRecord{}, nil
}

func TestServerGracefulShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	submitter := &blockingSubmitter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	defer func() {
		select {
		case <-submitter.release:
		default:
			close(submitter.release)
		}
	}()

	router := gin.New()
	router.Use(handlers.Metrics())
	handlers.RegisterRoutes(router, submitter, emptyFinder{}, handlers.MaxUploadSize)

	t.Log("creating listener")
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	t.Logf("listening on %s", addr)
	waitForServer(t, addr)

	client := &http.Client{Timeout: 2 * time.Second}
	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		t.Log("sending request")
		resp, err := client.Post("http://"+addr+handlers.UploadPath, "multipart/form-data; boundary=x", strings.NewReader(""))
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-submitter.started:
		t.Log("request started")
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start in time")
	}

	t.Log("sending signal")
	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	close(submitter.release)
	t.Log("released request")

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(body))
		}
		if !strings.Contains(string(body), "photo.jpg") {
			t.Fatalf("unexpected body: %s", string(body))
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
		t.Log("server shutdown complete")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
