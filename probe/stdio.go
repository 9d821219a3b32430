package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

const maxStderrBytes = 4096

// StdioConfig describes the server process to launch.
type StdioConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
}

// StdioTransport exchanges newline-delimited JSON-RPC frames with a child
// process over its stdin and stdout.
type StdioTransport struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr tailBuffer
	frames chan Message
	errs   chan error
	exited chan struct{}
	closed bool
}

// StartStdio launches the configured process.
func StartStdio(ctx context.Context, cfg StdioConfig) (*StdioTransport, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("probe: stdio command is required")
	}

	// #nosec G204 -- command comes from the operator.
	cmd := exec.CommandContext(ctx, cfg.Command, slices.Clone(cfg.Args)...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(cfg.Env)...)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stderr: tailBuffer{limit: maxStderrBytes},
		frames: make(chan Message, 64),
		errs:   make(chan error, 1),
		exited: make(chan struct{}),
	}
	cmd.Stderr = &t.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("probe: open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("probe: open stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("probe: start %s: %w", cfg.Command, err)
	}
	t.stdin = stdin

	go t.readLoop(stdout)
	go t.waitLoop()
	return t, nil
}

func (t *StdioTransport) readLoop(stdout io.Reader) {
	dec := json.NewDecoder(stdout)
	for {
		var m Message
		if err := dec.Decode(&m); err != nil {
			t.fail(fmt.Errorf("probe: decode server frame: %w", err))
			return
		}
		select {
		case t.frames <- m:
		default:
			t.fail(errors.New("probe: receive queue is full"))
			return
		}
	}
}

func (t *StdioTransport) waitLoop() {
	defer close(t.exited)
	err := t.cmd.Wait()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	if err == nil {
		err = errors.New("exited")
	}
	if tail := strings.TrimSpace(t.stderr.String()); tail != "" {
		t.fail(fmt.Errorf("probe: server process %w: %s", err, tail))
		return
	}
	t.fail(fmt.Errorf("probe: server process %w", err))
}

// Send writes one frame followed by a newline.
func (t *StdioTransport) Send(_ context.Context, message Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("probe: transport is closed")
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("probe: encode frame: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("probe: write frame: %w", err)
	}
	return nil
}

// Receive returns the next frame from the server.
func (t *StdioTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-t.frames:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case err := <-t.errs:
		return Message{}, err
	}
}

// Close stops the process and waits for it to exit.
func (t *StdioTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	select {
	case <-t.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stderr returns the tail of the process's standard error.
func (t *StdioTransport) Stderr() string {
	return t.stderr.String()
}

func (t *StdioTransport) fail(err error) {
	select {
	case t.errs <- err:
	default:
	}
}

func envList(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+values[k])
	}
	return out
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ Transport = (*StdioTransport)(nil)
