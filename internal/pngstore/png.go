// Package pngstore writes 32-bit RGBA PNG files whose zlib stream uses only
// DEFLATE stored blocks. No compression library is involved: every byte of
// the container, the zlib wrapper and the block headers is produced here.
package pngstore

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pspoerri/mapreproject/internal/checksum"
)

// Pixels is a packed 4-channel image in blue, green, red, alpha byte order.
type Pixels interface {
	Width() int
	Height() int
	Pix() []byte
}

// Signature is the fixed 8-byte PNG file signature.
var Signature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

const (
	// maxStoredBlock is the largest payload of one stored DEFLATE block.
	maxStoredBlock = 65535

	zlibCMF = 0x78 // deflate, 32K window
	zlibFLG = 0x01 // no preset dictionary; (0x78<<8|0x01) % 31 == 0

	colorTypeRGBA = 6
	bitDepth      = 8
)

// RawLen is the size of the uncompressed scanline stream: one filter byte
// plus width*4 pixel bytes per row.
func RawLen(width, height int) int {
	return height * (1 + width*4)
}

// IDATLen is the length of the IDAT chunk data for an image of the given size.
func IDATLen(width, height int) int {
	raw := RawLen(width, height)
	blocks := (raw + maxStoredBlock - 1) / maxStoredBlock
	if blocks == 0 {
		blocks = 1
	}
	return 2 + blocks*5 + raw + 4
}

// EncodedLen is the total byte length of the PNG produced for the given size.
func EncodedLen(width, height int) int {
	const chunkOverhead = 12 // length + type + crc
	return len(Signature) + (chunkOverhead + 13) + (chunkOverhead + IDATLen(width, height)) + chunkOverhead
}

// Encode returns the PNG encoding of img.
func Encode(img Pixels) []byte {
	var buf bytes.Buffer
	buf.Grow(EncodedLen(img.Width(), img.Height()))
	encodeTo(&buf, img)
	return buf.Bytes()
}

// Write encodes img to w.
func Write(w io.Writer, img Pixels) error {
	_, err := w.Write(Encode(img))
	return err
}

func encodeTo(buf *bytes.Buffer, img Pixels) {
	w, h := img.Width(), img.Height()
	buf.Write(Signature[:])

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = bitDepth
	ihdr[9] = colorTypeRGBA
	ihdr[10] = 0 // compression
	ihdr[11] = 0 // filter
	ihdr[12] = 0 // interlace
	writeChunk(buf, "IHDR", ihdr[:])

	writeIDAT(buf, img)

	writeChunk(buf, "IEND", nil)
}

// writeChunk writes a complete chunk whose body is known up front.
func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	r := checksum.Begin(buf)
	buf.WriteString(typ)
	buf.Write(data)
	r.Close()
	binary.BigEndian.PutUint32(n[:], r.CRC32())
	buf.Write(n[:])
}

// writeIDAT streams the zlib-wrapped scanlines straight into buf and
// finalizes the chunk CRC over the region afterwards.
func writeIDAT(buf *bytes.Buffer, img Pixels) {
	w, h := img.Width(), img.Height()
	pix := img.Pix()

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(IDATLen(w, h)))
	buf.Write(n[:])

	chunk := checksum.Begin(buf)
	buf.WriteString("IDAT")
	buf.WriteByte(zlibCMF)
	buf.WriteByte(zlibFLG)

	sw := &storedWriter{out: buf, left: RawLen(w, h), adler: checksum.NewAdler32()}

	stride := w * 4
	row := make([]byte, 1+stride)
	row[0] = 0 // filter type None
	for y := 0; y < h; y++ {
		src := pix[y*stride : (y+1)*stride]
		dst := row[1:]
		for i := 0; i < stride; i += 4 {
			// BGRA -> RGBA
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
		sw.Write(row)
	}

	binary.BigEndian.PutUint32(n[:], sw.adler.Value())
	buf.Write(n[:])

	chunk.Close()
	binary.BigEndian.PutUint32(n[:], chunk.CRC32())
	buf.Write(n[:])
}

// storedWriter splits the raw scanline stream into stored DEFLATE blocks.
// It must be fed exactly left bytes in total.
type storedWriter struct {
	out   *bytes.Buffer
	left  int // raw bytes not yet written
	block int // bytes remaining in the current block
	adler *checksum.Adler32
}

func (s *storedWriter) Write(p []byte) {
	s.adler.Update(p)
	for len(p) > 0 {
		if s.block == 0 {
			s.startBlock()
		}
		n := len(p)
		if n > s.block {
			n = s.block
		}
		s.out.Write(p[:n])
		s.block -= n
		s.left -= n
		p = p[n:]
	}
}

// startBlock writes a stored block header (RFC 1951 3.2.3/3.2.4). The three
// header bits are packed LSB first: BFINAL in bit 0, BTYPE=00 in bits 1-2;
// the rest of the byte is padding up to the byte boundary.
func (s *storedWriter) startBlock() {
	size := s.left
	var header byte
	if size > maxStoredBlock {
		size = maxStoredBlock
	} else {
		header = 0x01
	}
	s.out.WriteByte(header)
	var lens [4]byte
	binary.LittleEndian.PutUint16(lens[0:2], uint16(size))
	binary.LittleEndian.PutUint16(lens[2:4], ^uint16(size))
	s.out.Write(lens[:])
	s.block = size
}
