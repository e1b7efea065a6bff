package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/straja-ai/textpulse/internal/protocol"
)

// CoProcess runs the service as a child process and exchanges line-framed
// messages over its stdin and stdout. The child's stderr goes to ours.
// A child whose exchange was abandoned, or which answered with someone
// else's id, is killed and respawned on the next exchange, so a stale answer
// can never be read as a newer response.
type CoProcess struct {
	argv     []string
	timeout  time.Duration
	inFlight slot

	mu    sync.Mutex
	child *child
}

type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	once   sync.Once
}

func NewCoProcess(argv []string, timeout time.Duration) *CoProcess {
	return &CoProcess{argv: argv, timeout: timeout, inFlight: newSlot()}
}

func (p *CoProcess) Exchange(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.inFlight.acquire(ctx); err != nil {
		return nil, err
	}

	c, err := p.current()
	if err != nil {
		p.inFlight.release()
		return nil, err
	}

	resp, err := WithDeadline(ctx, 0, func() (*protocol.Response, error) {
		defer p.inFlight.release()
		resp, err := c.roundTrip(req)
		if err == nil && !resp.Answers(req.ID) {
			log.Printf("co-process answered id=%s to request id=%s; restarting %s", resp.ID, req.ID, p.argv[0])
			err = &protocol.FaultError{ID: resp.ID, Message: fmt.Sprintf("response does not answer request %s", req.ID)}
			resp = nil
		}
		if err != nil {
			p.discard(c)
		}
		return resp, err
	})
	if errors.Is(err, ErrUnavailable) && ctx.Err() != nil {
		log.Printf("co-process exchange id=%s abandoned; restarting %s", req.ID, p.argv[0])
		p.discard(c)
	}
	return resp, err
}

// current returns the running child, spawning one if needed.
func (p *CoProcess) current() (*child, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.child != nil {
		return p.child, nil
	}

	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, unavailable("stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, unavailable("stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, unavailable("start %s: %v", p.argv[0], err)
	}
	log.Printf("co-process started pid=%d cmd=%s", cmd.Process.Pid, p.argv[0])

	p.child = &child{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	return p.child, nil
}

// discard kills c and forgets it if it is still the current child.
func (p *CoProcess) discard(c *child) {
	p.mu.Lock()
	if p.child == c {
		p.child = nil
	}
	p.mu.Unlock()
	c.kill()
}

func (p *CoProcess) Close() error {
	p.mu.Lock()
	c := p.child
	p.child = nil
	p.mu.Unlock()
	if c != nil {
		c.kill()
	}
	return nil
}

func (c *child) roundTrip(req *protocol.Request) (*protocol.Response, error) {
	if err := protocol.WriteLine(c.stdin, req); err != nil {
		return nil, unavailable("%v", err)
	}
	line, err := protocol.ReadLine(c.stdout)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformed) {
			return nil, err
		}
		return nil, unavailable("read from co-process: %v", err)
	}
	return decodeFrame(line)
}

func (c *child) kill() {
	c.once.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		go func() {
			if err := c.cmd.Wait(); err != nil {
				log.Printf("co-process pid=%d exited: %v", c.cmd.Process.Pid, err)
			}
		}()
	})
}

// ServeLines answers one request per line read from r until r is exhausted
// or ctx is cancelled. Blank lines are ignored.
func ServeLines(ctx context.Context, r io.Reader, w io.Writer, h Handler) error {
	br := bufio.NewReader(r)
	for ctx.Err() == nil {
		line, err := protocol.ReadLine(br)
		var resp *protocol.Response
		switch {
		case err == nil:
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			resp = h.HandleMessage(ctx, line)
		case errors.Is(err, protocol.ErrMalformed):
			resp = protocol.NewFault("", err.Error())
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("read request: %w", err)
		}
		if err := protocol.WriteLine(w, resp); err != nil {
			return err
		}
	}
	return nil
}
