package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/textpulse/internal/protocol"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTPExchange(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(stubHandler(0.6)))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	defer c.Close()

	resp, err := c.Exchange(context.Background(), protocol.NewRequest("a-1", "I love this"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.ID != "a-1" || resp.Result == nil || resp.Result.Sentiment != protocol.Positive {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHTTPHandlerFaultsAndHealth(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(stubHandler(0.6)))
	defer srv.Close()

	res, err := http.Post(srv.URL+MCPPath, "application/json", strings.NewReader(`{"broken`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	resp, err := protocol.DecodeResponse(body)
	if err != nil || resp.Error == nil {
		t.Fatalf("expected fault body, got %s (%v)", body, err)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}

func TestHTTPExchangeErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			check: func(err error) bool { return errors.Is(err, ErrUnavailable) },
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>hello</html>"))
			},
			check: func(err error) bool { return errors.Is(err, protocol.ErrMalformed) },
		},
		{
			name: "neither result nor error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"x"}`))
			},
			check: func(err error) bool { return protocol.IsProtocolFault(err) },
		},
		{
			name: "slow service",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
			},
			check: func(err error) bool { return errors.Is(err, ErrUnavailable) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := NewHTTPClient(srv.URL, 100*time.Millisecond)
			_, err := c.Exchange(context.Background(), protocol.NewRequest("x", "text"))
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestHTTPExchangeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second)
	if _, err := c.Exchange(context.Background(), protocol.NewRequest("x", "t")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
