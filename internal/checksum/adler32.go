package checksum

const (
	adlerMod = 65521
	// adlerBatch is the number of bytes that can be summed before s2 may
	// overflow 32 bits when s1 and s2 start just below adlerMod.
	adlerBatch = 3800
)

// Adler32 is a running Adler-32 checksum. The zero value is not ready for
// use; call NewAdler32 or Reset first.
type Adler32 struct {
	s1, s2 uint32
}

// NewAdler32 returns a reset Adler-32 accumulator.
func NewAdler32() *Adler32 {
	a := &Adler32{}
	a.Reset()
	return a
}

// Reset restores the initial sums (s1=1, s2=0).
func (a *Adler32) Reset() {
	a.s1 = 1
	a.s2 = 0
}

// UpdateByte adds a single byte.
func (a *Adler32) UpdateByte(b byte) {
	a.s1 = (a.s1 + uint32(b)) % adlerMod
	a.s2 = (a.s2 + a.s1) % adlerMod
}

// Update adds all bytes of p. The modulo is applied once per batch.
func (a *Adler32) Update(p []byte) {
	s1, s2 := a.s1, a.s2
	for len(p) > 0 {
		n := len(p)
		if n > adlerBatch {
			n = adlerBatch
		}
		for _, v := range p[:n] {
			s1 += uint32(v)
			s2 += s1
		}
		s1 %= adlerMod
		s2 %= adlerMod
		p = p[n:]
	}
	a.s1, a.s2 = s1, s2
}

// Write implements io.Writer so the accumulator can sit behind an io.MultiWriter.
func (a *Adler32) Write(p []byte) (int, error) {
	a.Update(p)
	return len(p), nil
}

// Value returns (s2<<16) | s1.
func (a *Adler32) Value() uint32 {
	return a.s2<<16 | a.s1
}

// Adler32Of returns the Adler-32 checksum of b.
func Adler32Of(b []byte) uint32 {
	a := NewAdler32()
	a.Update(b)
	return a.Value()
}
