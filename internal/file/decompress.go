package file

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// DecompressPool manages reusable zstd decoders to reduce allocation overhead.
type DecompressPool struct {
	pool                  *sync.Pool
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
	decoderLowmemSet      bool
	decoderLowmem         bool
}

// decompressOption configures a DecompressPool.
type decompressOption func(*DecompressPool)

func withDecoderConcurrency(n int) decompressOption {
	return func(p *DecompressPool) {
		if n < 0 {
			n = 0
		}
		p.decoderConcurrency = n
		p.decoderConcurrencySet = true
	}
}

func withDecoderLowmem(b bool) decompressOption {
	return func(p *DecompressPool) {
		p.decoderLowmem = b
		p.decoderLowmemSet = true
	}
}

// NewDecompressPool creates a pool of zstd decoders.
// If maxMemory is 0, no memory limit is applied to decoders.
func NewDecompressPool(maxMemory uint64, opts ...decompressOption) *DecompressPool {
	p := &DecompressPool{
		maxDecoderMemory:      maxMemory,
		decoderConcurrencySet: true,
		decoderConcurrency:    1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Get returns a decoder reading from r and the function that hands it back.
// If an error is returned, no release function needs to be called.
func (p *DecompressPool) Get(r io.Reader) (*zstd.Decoder, func(), error) {
	if p == nil || p.pool == nil {
		return p.oneOff(r)
	}

	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok {
		return p.oneOff(r)
	}
	if err := dec.Reset(r); err != nil {
		dec.Close()
		return p.oneOff(r)
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

func (p *DecompressPool) oneOff(r io.Reader) (*zstd.Decoder, func(), error) {
	dec, err := p.newDecoder(r)
	if err != nil {
		return nil, nil, err
	}
	return dec, dec.Close, nil
}

func (p *DecompressPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	if p == nil {
		return zstd.NewReader(r)
	}
	opts := make([]zstd.DOption, 0, 3)
	if p.maxDecoderMemory > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	if p.decoderConcurrencySet {
		opts = append(opts, zstd.WithDecoderConcurrency(p.decoderConcurrency))
	}
	if p.decoderLowmemSet {
		opts = append(opts, zstd.WithDecoderLowmem(p.decoderLowmem))
	}
	return zstd.NewReader(r, opts...)
}

// InflatePool manages reusable raw DEFLATE readers.
type InflatePool struct {
	pool sync.Pool
}

// NewInflatePool creates an empty pool of DEFLATE readers.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// Get returns a reader inflating r and the function that hands it back.
func (p *InflatePool) Get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil {
		rc := flate.NewReader(r)
		return rc, func() { _ = rc.Close() }, nil
	}

	rc, ok := p.pool.Get().(io.ReadCloser)
	if !ok {
		rc = flate.NewReader(r)
	} else if err := rc.(flate.Resetter).Reset(r, nil); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	return rc, func() {
		_ = rc.Close()
		p.pool.Put(rc)
	}, nil
}
