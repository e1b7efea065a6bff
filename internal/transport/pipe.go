package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/straja-ai/textpulse/internal/protocol"
)

const (
	// RequestFIFO carries requests from the collector to the service.
	RequestFIFO = "requests.fifo"
	// ResponseFIFO carries responses from the service to the collector.
	ResponseFIFO = "responses.fifo"
)

// PipeClient talks to the service through two named pipes. Opens and reads
// on a FIFO block until the peer shows up, so each exchange runs under
// WithDeadline. The in-flight slot is held until the underlying goroutine
// finishes: a late response is drained by the exchange that sent its
// request and never handed to a newer one.
type PipeClient struct {
	reqPath  string
	respPath string
	timeout  time.Duration
	inFlight slot
}

func NewPipeClient(dir string, timeout time.Duration) *PipeClient {
	return &PipeClient{
		reqPath:  filepath.Join(dir, RequestFIFO),
		respPath: filepath.Join(dir, ResponseFIFO),
		timeout:  timeout,
		inFlight: newSlot(),
	}
}

func (p *PipeClient) Exchange(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.inFlight.acquire(ctx); err != nil {
		return nil, err
	}

	resp, err := WithDeadline(ctx, 0, func() (*protocol.Response, error) {
		defer p.inFlight.release()
		return p.roundTrip(req)
	})
	if errors.Is(err, ErrUnavailable) && ctx.Err() != nil {
		log.Printf("pipe exchange id=%s abandoned; a late response will be discarded", req.ID)
	}
	return resp, err
}

func (p *PipeClient) roundTrip(req *protocol.Request) (*protocol.Response, error) {
	if err := checkFIFO(p.reqPath); err != nil {
		return nil, unavailable("%v", err)
	}
	if err := p.send(req); err != nil {
		return nil, err
	}
	resp, err := p.recv()
	if err == nil && !resp.Answers(req.ID) {
		return nil, &protocol.FaultError{ID: resp.ID, Message: fmt.Sprintf("response does not answer request %s", req.ID)}
	}
	return resp, err
}

func (p *PipeClient) send(req *protocol.Request) error {
	f, err := os.OpenFile(p.reqPath, os.O_WRONLY, 0)
	if err != nil {
		return unavailable("open %s: %v", p.reqPath, err)
	}
	defer f.Close()
	if err := protocol.WriteLine(f, req); err != nil {
		return unavailable("%v", err)
	}
	return nil
}

func (p *PipeClient) recv() (*protocol.Response, error) {
	f, err := os.OpenFile(p.respPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, unavailable("open %s: %v", p.respPath, err)
	}
	defer f.Close()

	line, err := protocol.ReadLine(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, protocol.ErrMalformed) {
			return nil, err
		}
		return nil, unavailable("read %s: %v", p.respPath, err)
	}
	return decodeFrame(line)
}

func (p *PipeClient) Close() error { return nil }

// EnsureFIFO creates a named pipe at path unless one already exists.
func EnsureFIFO(path string) error {
	err := checkFIFO(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pipe dir: %w", err)
	}
	if err := unix.Mkfifo(path, 0o600); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

func checkFIFO(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeNamedPipe == 0 {
		return fmt.Errorf("%s exists and is not a named pipe", path)
	}
	return nil
}

// responseReaderWait bounds how long the server waits for the client that
// sent a request to open the response pipe.
const responseReaderWait = 5 * time.Second

// ServePipe creates the two FIFOs under dir and answers one request per
// open of the request pipe until ctx is cancelled.
func ServePipe(ctx context.Context, dir string, h Handler) error {
	return servePipe(ctx, dir, h, responseReaderWait)
}

func servePipe(ctx context.Context, dir string, h Handler, readerWait time.Duration) error {
	reqPath := filepath.Join(dir, RequestFIFO)
	respPath := filepath.Join(dir, ResponseFIFO)
	for _, path := range []string{reqPath, respPath} {
		if err := EnsureFIFO(path); err != nil {
			return err
		}
	}
	log.Printf("analyzer serving pipes in %s", dir)

	errCh := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			if err := servePipeOnce(ctx, reqPath, respPath, h, readerWait); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func servePipeOnce(ctx context.Context, reqPath, respPath string, h Handler, readerWait time.Duration) error {
	in, err := os.OpenFile(reqPath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", reqPath, err)
	}
	line, readErr := protocol.ReadLine(bufio.NewReader(in))
	in.Close()

	var resp *protocol.Response
	switch {
	case readErr == nil:
		resp = h.HandleMessage(ctx, line)
	case errors.Is(readErr, protocol.ErrMalformed):
		resp = protocol.NewFault("", readErr.Error())
	default:
		// Writer closed without sending a frame.
		return nil
	}

	out, err := openReader(ctx, respPath, readerWait)
	if errors.Is(err, unix.ENXIO) {
		log.Printf("pipe: no reader for response id=%s after %s; dropped", resp.ID, readerWait)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", respPath, err)
	}
	defer out.Close()
	if err := protocol.WriteLine(out, resp); err != nil {
		log.Printf("pipe: write response id=%s: %v", resp.ID, err)
	}
	return nil
}

// openReader opens the write end of the FIFO at path once a reader holds the
// other end, polling for at most wait. It fails with ENXIO when nobody shows up.
func openReader(ctx context.Context, path string, wait time.Duration) (*os.File, error) {
	deadline := time.Now().Add(wait)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.ENXIO) || ctx.Err() != nil || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}
