package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/textpulse/internal/protocol"
)

// MCPPath is where the service accepts analyze requests over HTTP.
const MCPPath = "/mcp"

// HTTPClient posts each request to <base>/mcp.
type HTTPClient struct {
	url      string
	client   *http.Client
	timeout  time.Duration
	inFlight slot
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:      strings.TrimRight(baseURL, "/") + MCPPath,
		client:   &http.Client{},
		timeout:  timeout,
		inFlight: newSlot(),
	}
}

func (c *HTTPClient) Exchange(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.inFlight.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.inFlight.release()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, unavailable("post %s: %v", c.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, protocol.MaxLineBytes+1))
	if err != nil {
		return nil, unavailable("read response: %v", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, unavailable("status %d from %s", resp.StatusCode, c.url)
	}
	if len(data) > protocol.MaxLineBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", protocol.ErrMalformed, protocol.MaxLineBytes)
	}

	out, err := decodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	return out, nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// NewHTTPHandler exposes h at POST /mcp. Faults are answered with 200 so the
// body always carries the protocol-level outcome.
func NewHTTPHandler(h Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST(MCPPath, func(c *gin.Context) {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, protocol.MaxLineBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, protocol.NewFault("", "read body: "+err.Error()))
			return
		}
		if len(raw) > protocol.MaxLineBytes {
			c.JSON(http.StatusRequestEntityTooLarge, protocol.NewFault("", "request too large"))
			return
		}
		c.JSON(http.StatusOK, h.HandleMessage(c.Request.Context(), raw))
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// ServeHTTP runs the HTTP exposure on addr until ctx is cancelled.
func ServeHTTP(ctx context.Context, addr string, h Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("analyzer listening on %s (POST %s)", addr, MCPPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
