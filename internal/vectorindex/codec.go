package vectorindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"docqa/internal/domain"
)

// Persisted layout, little-endian:
//
//	header: magic "DQIX" | version uint16 | dimension uint32 | count uint32
//	record: file_id int64 | chunk_index uint32 | estimated_page uint32 |
//	        word_count uint32 | text_len uint32 | text | dimension x float32
const (
	FormatVersion uint16 = 1

	headerSize      = 4 + 2 + 4 + 4
	recordFixedSize = 8 + 4 + 4 + 4 + 4
)

var magic = [4]byte{'D', 'Q', 'I', 'X'}

// MarshalBinary encodes the whole index as a single blob.
func (ix *Index) MarshalBinary() ([]byte, error) {
	size := headerSize
	for _, e := range ix.entries {
		size += recordFixedSize + len(e.Text) + 4*ix.dimension
	}

	buf := make([]byte, size)
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], FormatVersion)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(ix.dimension))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(ix.entries)))

	off := headerSize
	for _, e := range ix.entries {
		if len(e.Vector) != ix.dimension {
			return nil, fmt.Errorf("encode index: %w", domain.ErrDimensionMismatch)
		}
		binary.LittleEndian.PutUint64(buf[off:], uint64(e.FileID))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(e.ChunkIndex))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(e.EstimatedPage))
		binary.LittleEndian.PutUint32(buf[off+16:], uint32(e.WordCount))
		binary.LittleEndian.PutUint32(buf[off+20:], uint32(len(e.Text)))
		off += recordFixedSize
		off += copy(buf[off:], e.Text)
		for _, v := range e.Vector {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf, nil
}

// UnmarshalBinary replaces the index contents with the decoded blob.
func (ix *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: short header (%d bytes)", domain.ErrCorruptIndex, len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return fmt.Errorf("%w: bad magic %q", domain.ErrCorruptIndex, data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != FormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", domain.ErrCorruptIndex, v)
	}
	dimension := int(binary.LittleEndian.Uint32(data[6:10]))
	count := int(binary.LittleEndian.Uint32(data[10:14]))

	// Every record needs at least its fixed fields and vector, so count and
	// dimension are bounded by the blob length before anything is allocated.
	remaining := len(data) - headerSize
	if count > 0 {
		if dimension > remaining/4 {
			return fmt.Errorf("%w: dimension %d exceeds blob size", domain.ErrCorruptIndex, dimension)
		}
		if count > remaining/(recordFixedSize+4*dimension) {
			return fmt.Errorf("%w: %d records cannot fit in %d bytes", domain.ErrCorruptIndex, count, remaining)
		}
	}

	decoded := New(dimension)
	decoded.entries = make([]domain.Entry, 0, count)
	decoded.norms = make([]float64, 0, count)

	off := headerSize
	for i := 0; i < count; i++ {
		if len(data)-off < recordFixedSize {
			return fmt.Errorf("%w: record %d truncated", domain.ErrCorruptIndex, i)
		}
		fileID := int64(binary.LittleEndian.Uint64(data[off:]))
		chunkIndex := int(binary.LittleEndian.Uint32(data[off+8:]))
		page := int(binary.LittleEndian.Uint32(data[off+12:]))
		words := int(binary.LittleEndian.Uint32(data[off+16:]))
		textLen := int(binary.LittleEndian.Uint32(data[off+20:]))
		off += recordFixedSize

		if len(data)-off < textLen+4*dimension {
			return fmt.Errorf("%w: record %d body truncated", domain.ErrCorruptIndex, i)
		}
		text := string(data[off : off+textLen])
		off += textLen

		vec := make([]float32, dimension)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}

		decoded.entries = append(decoded.entries, domain.Entry{
			FileID:        fileID,
			ChunkIndex:    chunkIndex,
			EstimatedPage: page,
			WordCount:     words,
			Text:          text,
			Vector:        vec,
		})
		decoded.norms = append(decoded.norms, norm(vec))
	}
	if off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", domain.ErrCorruptIndex, len(data)-off)
	}

	*ix = *decoded
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Index, error) {
	ix := New(0)
	if err := ix.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ix, nil
}
