package checksum

import "bytes"

// Region marks a start offset in a growable output buffer. Checksums are
// computed lazily over every byte appended after the mark, which lets an
// encoder stream a chunk body and append its CRC afterwards without keeping
// a second copy of the body.
type Region struct {
	buf   *bytes.Buffer
	start int
	end   int // -1 while the region is open
}

// Begin opens a region at the current end of buf.
func Begin(buf *bytes.Buffer) *Region {
	return &Region{buf: buf, start: buf.Len(), end: -1}
}

// Close freezes the end of the region at the current end of the buffer.
// Bytes written afterwards are not covered. Close is idempotent.
func (r *Region) Close() {
	if r.end < 0 {
		r.end = r.buf.Len()
	}
}

// Bytes returns the bytes covered by the region. The slice aliases the
// buffer and is only valid until the next write.
func (r *Region) Bytes() []byte {
	b := r.buf.Bytes()
	end := r.end
	if end < 0 {
		end = len(b)
	}
	return b[r.start:end]
}

// Len is the number of bytes covered by the region.
func (r *Region) Len() int {
	return len(r.Bytes())
}

// CRC32 returns the CRC-32 of the covered bytes.
func (r *Region) CRC32() uint32 {
	return CRC32(r.Bytes())
}
