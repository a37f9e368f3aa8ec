package tts

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan StreamChunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		buf.Write(chunk.Data)
	}
	return buf.Bytes()
}

func TestSimulateStreamConcatenation(t *testing.T) {
	audio := bytes.Repeat([]byte("abcd"), 3000) // 12000 bytes, not chunk-aligned

	got := collect(t, simulateStream(context.Background(), audio))
	assert.Equal(t, audio, got)
}

func TestSimulateStreamChunkSizes(t *testing.T) {
	audio := make([]byte, StreamChunkSize*2+100)

	var sizes []int
	for chunk := range simulateStream(context.Background(), audio) {
		sizes = append(sizes, len(chunk.Data))
	}
	assert.Equal(t, []int{StreamChunkSize, StreamChunkSize, 100}, sizes)
}

func TestSimulateStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := simulateStream(ctx, make([]byte, StreamChunkSize*10))

	<-ch // consume one chunk, then stop
	cancel()

	// The producer must close the channel rather than block forever.
	for range ch {
	}
}

func TestStreamBody(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, StreamChunkSize+17)
	body := io.NopCloser(bytes.NewReader(payload))

	got := collect(t, streamBody(context.Background(), body))
	assert.Equal(t, payload, got)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (failingReader) Close() error             { return nil }

func TestStreamBodyPropagatesReadError(t *testing.T) {
	ch := streamBody(context.Background(), failingReader{})

	var last StreamChunk
	for chunk := range ch {
		last = chunk
	}
	require.ErrorIs(t, last.Err, io.ErrUnexpectedEOF)
}
