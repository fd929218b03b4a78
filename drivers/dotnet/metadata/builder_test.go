package metadata

import (
	"bytes"
	"encoding/binary"
)

// imageBuilder assembles a minimal metadata root for tests. Heaps and tables
// are kept small so every index is two bytes wide.
type imageBuilder struct {
	strings bytes.Buffer
	blob    bytes.Buffer
	rows    [numTables][][]uint32
}

func newImageBuilder() *imageBuilder {
	b := &imageBuilder{}
	b.strings.WriteByte(0)
	b.blob.WriteByte(0)
	return b
}

func (b *imageBuilder) str(s string) uint32 {
	if s == "" {
		return 0
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(s)
	b.strings.WriteByte(0)
	return off
}

func (b *imageBuilder) blobOf(data ...byte) uint32 {
	off := uint32(b.blob.Len())
	b.blob.WriteByte(byte(len(data)))
	b.blob.Write(data)
	return off
}

// add appends a row and returns its 1-based index.
func (b *imageBuilder) add(t tableID, values ...uint32) uint32 {
	b.rows[t] = append(b.rows[t], values)
	return uint32(len(b.rows[t]))
}

func encode(c *codedIndex, t tableID, row uint32) uint32 {
	for tag, candidate := range c.tables {
		if candidate == t {
			return row<<c.tagBits | uint32(tag)
		}
	}
	panic("table not in coded index")
}

func (b *imageBuilder) tableStream() []byte {
	var out bytes.Buffer
	le := binary.LittleEndian

	var valid uint64
	for t := range b.rows {
		if len(b.rows[t]) > 0 {
			valid |= 1 << uint(t)
		}
	}

	_ = binary.Write(&out, le, uint32(0))
	out.Write([]byte{2, 0, 0, 1})
	_ = binary.Write(&out, le, valid)
	_ = binary.Write(&out, le, uint64(0))
	for t := range b.rows {
		if len(b.rows[t]) > 0 {
			_ = binary.Write(&out, le, uint32(len(b.rows[t])))
		}
	}
	for t := range b.rows {
		for _, row := range b.rows[t] {
			for i, c := range schema[t] {
				if c.kind == colU32 {
					_ = binary.Write(&out, le, row[i])
				} else {
					_ = binary.Write(&out, le, uint16(row[i]))
				}
			}
		}
	}
	return out.Bytes()
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// root serializes the metadata root with #~, #Strings and #Blob streams.
func (b *imageBuilder) root() []byte {
	le := binary.LittleEndian
	type stream struct {
		name string
		data []byte
	}
	streams := []stream{
		{"#~", pad4(b.tableStream())},
		{"#Strings", pad4(append([]byte(nil), b.strings.Bytes()...))},
		{"#Blob", pad4(append([]byte(nil), b.blob.Bytes()...))},
	}

	version := pad4([]byte("v4.0.30319\x00"))
	headerLen := 16 + len(version) + 4
	for _, s := range streams {
		headerLen += 8 + (len(s.name)+4)&^3
	}

	var out bytes.Buffer
	_ = binary.Write(&out, le, uint32(metadataSignature))
	_ = binary.Write(&out, le, uint16(1))
	_ = binary.Write(&out, le, uint16(1))
	_ = binary.Write(&out, le, uint32(0))
	_ = binary.Write(&out, le, uint32(len(version)))
	out.Write(version)
	_ = binary.Write(&out, le, uint16(0))
	_ = binary.Write(&out, le, uint16(len(streams)))

	offset := headerLen
	for _, s := range streams {
		_ = binary.Write(&out, le, uint32(offset))
		_ = binary.Write(&out, le, uint32(len(s.data)))
		name := make([]byte, (len(s.name)+4)&^3)
		copy(name, s.name)
		out.Write(name)
		offset += len(s.data)
	}
	for _, s := range streams {
		out.Write(s.data)
	}
	return out.Bytes()
}
