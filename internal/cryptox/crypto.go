// Package cryptox computes content digests for uploaded revisions.
//
// Digests are BLAKE2b-256, hex encoded, computed while the bytes stream to
// the object store so content never needs to be buffered whole.
package cryptox

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// DigestReader wraps a reader and hashes every byte read through it.
type DigestReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

// NewDigestReader returns a DigestReader over r.
func NewDigestReader(r io.Reader) *DigestReader {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for an oversized key; we pass none
		panic(err)
	}
	return &DigestReader{r: r, h: h}
}

func (d *DigestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.size += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of everything read so far.
func (d *DigestReader) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Size returns the number of bytes read so far.
func (d *DigestReader) Size() int64 {
	return d.size
}

// Digest hashes b in one shot.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
