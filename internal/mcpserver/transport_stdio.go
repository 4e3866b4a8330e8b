package mcpserver

import (
	"bufio"
	"context"
	"io"

	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// maxLineBytes bounds one JSON-RPC line; a review_diff call can carry a
// sizeable unified diff, so the default bufio.Scanner token limit (64 KiB)
// is raised well past the 1 MiB per-file indexing limit spec §5 names.
const maxLineBytes = 8 << 20

// ServeStdio runs the line-delimited JSON-RPC 2.0 loop over in/out, mirroring
// the teacher's StdioTransport.readStdout scanner loop but answering
// requests instead of dispatching responses to a pending-request map. It
// blocks until ctx is cancelled or in is exhausted.
func ServeStdio(ctx context.Context, srv *Server, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	writer := bufio.NewWriter(out)
	defer writer.Flush()

	logging.Dispatcher("mcp stdio transport listening")

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := srv.Handle(ctx, line)
		if resp == nil {
			continue
		}
		if _, err := writer.Write(resp); err != nil {
			return err
		}
		if _, err := writer.Write([]byte{'\n'}); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
