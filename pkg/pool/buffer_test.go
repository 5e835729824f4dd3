package pool

import "testing"

func TestFixedBufferPool(t *testing.T) {
	fp := NewFixedBuffer(1024)

	buf := fp.Get()
	if buf == nil {
		t.Fatal("Get returned nil")
	}
	if len(*buf) != 1024 || cap(*buf) != 1024 {
		t.Fatalf("buffer has len=%d cap=%d, want 1024/1024", len(*buf), cap(*buf))
	}
	fp.Put(buf)

	// A buffer shortened by the caller must come back at full length.
	buf = fp.Get()
	*buf = (*buf)[:10]
	fp.Put(buf)
	buf = fp.Get()
	if len(*buf) != 1024 {
		t.Errorf("recycled buffer has len=%d, want 1024", len(*buf))
	}
	fp.Put(buf)
}

func TestFixedBufferPoolRejectsForeignBuffers(t *testing.T) {
	fp := NewFixedBuffer(1024)

	// Wrong capacity must be silently dropped, not pooled.
	wrong := make([]byte, 512)
	fp.Put(&wrong)
	fp.Put(nil)

	buf := fp.Get()
	if cap(*buf) != 1024 {
		t.Errorf("pool handed out a foreign buffer with cap=%d", cap(*buf))
	}
}
