package ctf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// inputPlaceholder in a decoder command line is replaced by the trace path.
const inputPlaceholder = "{}"

// CommandReader runs an external decoder and reads JSONL events from its
// stdout. The decoder's exit status is checked once stdout is exhausted.
type CommandReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	jsonl  *JSONLReader
	done   bool
}

// NewCommandReader starts command with the trace at input as its argument.
// The trace path replaces "{}" if present, otherwise it is appended.
func NewCommandReader(ctx context.Context, command, input string) (*CommandReader, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty decoder command", ErrDecode)
	}
	substituted := false
	for i, arg := range argv {
		if strings.Contains(arg, inputPlaceholder) {
			argv[i] = strings.ReplaceAll(arg, inputPlaceholder, input)
			substituted = true
		}
	}
	if !substituted {
		argv = append(argv, input)
	}

	//nolint:gosec // running the configured decoder is the point
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting decoder %q: %v", ErrDecode, argv[0], err)
	}

	return &CommandReader{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		jsonl:  NewJSONLReader(argv[0], stdout),
	}, nil
}

// Next returns the next decoded event. A non-zero decoder exit surfaces as
// ErrDecode carrying the decoder's stderr.
func (r *CommandReader) Next() (Event, error) {
	if r.done {
		return nil, io.EOF
	}
	ev, err := r.jsonl.Next()
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, io.EOF) {
		r.stop()
		return nil, err
	}

	r.done = true
	if waitErr := r.cmd.Wait(); waitErr != nil {
		msg := strings.TrimSpace(r.stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%w: decoder failed: %v", ErrDecode, waitErr)
		}
		return nil, fmt.Errorf("%w: decoder failed: %v: %s", ErrDecode, waitErr, msg)
	}
	return nil, io.EOF
}

// Close stops the decoder if it is still running.
func (r *CommandReader) Close() error {
	if r.done {
		return nil
	}
	r.stop()
	return nil
}

func (r *CommandReader) stop() {
	r.done = true
	_ = r.stdout.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill() //nolint:errcheck // best-effort, process may have exited
	}
	_ = r.cmd.Wait() //nolint:errcheck // exit status is irrelevant once abandoned
}
