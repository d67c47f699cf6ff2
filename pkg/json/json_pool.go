// Package json provides JSON serialization with pooled scratch buffers.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/boxfriend/poolkit/pkg/pool"
)

const (
	initialBufferSize = 4096
	// Buffers that grew beyond this are replaced instead of pooled
	maxPooledBufferSize = 1024 * 1024
)

// BufferPool hands out reusable encode buffers. It is a Stack pool behind a
// mutex, so it grows under load and trims itself back to its max size.
type BufferPool struct {
	mu    sync.Mutex
	stack *pool.Stack[*bytes.Buffer]
}

// NewBufferPool creates a buffer pool sized by cfg.
func NewBufferPool(cfg pool.StackConfig, opts ...pool.Option) (*BufferPool, error) {
	stack, err := pool.NewStack(cfg, pool.Hooks[*bytes.Buffer]{
		Create:    newBuffer,
		OnAcquire: func(*bytes.Buffer) {},
		OnRelease: func(buf *bytes.Buffer) { buf.Reset() },
	}, append([]pool.Option{pool.WithName("json_buffers")}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &BufferPool{stack: stack}, nil
}

func newBuffer() *bytes.Buffer {
	return bytes.NewBuffer(make([]byte, 0, initialBufferSize))
}

// Global buffer pool instance
var globalPool = mustBufferPool(pool.StackConfig{DefaultSize: 0, MaxSize: 16})

func mustBufferPool(cfg pool.StackConfig) *BufferPool {
	p, err := NewBufferPool(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stack.Acquire()
}

// Put returns buf to the pool. buf must not be used afterwards.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > maxPooledBufferSize {
		buf = newBuffer()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.stack.Release(buf)
}

// Idle is the number of buffers waiting in the pool.
func (p *BufferPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stack.Count()
}

// Created is the number of buffers the pool has allocated.
func (p *BufferPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stack.Created()
}

// Encode writes v to w as JSON followed by a newline. A non-empty indent
// pretty-prints the output. The value is encoded into a pooled buffer first,
// so w sees either the whole document or nothing.
func (p *BufferPool) Encode(w io.Writer, v interface{}, indent string) error {
	buf := p.Get()
	defer p.Put(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// GetBuffer gets a buffer from the global pool
func GetBuffer() *bytes.Buffer {
	return globalPool.Get()
}

// PutBuffer returns a buffer to the global pool
func PutBuffer(buf *bytes.Buffer) {
	globalPool.Put(buf)
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a high-performance replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter encodes v to w using the global buffer pool
func MarshalToWriter(w io.Writer, v interface{}) error {
	return globalPool.Encode(w, v, "")
}

// MarshalIndentToWriter is MarshalToWriter with pretty-printing
func MarshalIndentToWriter(w io.Writer, v interface{}, indent string) error {
	return globalPool.Encode(w, v, indent)
}

// MarshalLines encodes values as line-delimited JSON
func MarshalLines(values []interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}

	// Create a copy since we're returning the buffer to the pool
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
