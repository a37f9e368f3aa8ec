package tts

import (
	"context"
	"io"
)

// StreamChunkSize is the chunk granularity for both native body reads and
// simulated streaming.
const StreamChunkSize = 4096

// simulateStream re-chunks a fully synthesized payload so that providers
// without native streaming present the same surface as those with it.
// Concatenating every chunk yields the original payload.
func simulateStream(ctx context.Context, audio []byte) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for off := 0; off < len(audio); off += StreamChunkSize {
			end := off + StreamChunkSize
			if end > len(audio) {
				end = len(audio)
			}
			select {
			case ch <- StreamChunk{Data: audio[off:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// streamBody reads an HTTP response body incrementally, emitting fixed-size
// chunks in order. The body is closed when the stream ends or the context
// is cancelled.
func streamBody(ctx context.Context, body io.ReadCloser) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer body.Close()
		for {
			buf := make([]byte, StreamChunkSize)
			n, err := body.Read(buf)
			if n > 0 {
				select {
				case ch <- StreamChunk{Data: buf[:n]}:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case ch <- StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return ch
}
