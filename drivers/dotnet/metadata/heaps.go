package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned for metadata that cannot be decoded.
var ErrMalformed = errors.New("malformed metadata")

const metadataSignature = 0x424A5342 // "BSJB"

type heaps struct {
	strings []byte
	blob    []byte
}

func (h *heaps) str(i uint32) string {
	if int(i) >= len(h.strings) {
		return ""
	}
	s := h.strings[i:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return string(s)
}

func (h *heaps) blobAt(i uint32) []byte {
	if int(i) >= len(h.blob) {
		return nil
	}
	n, size, ok := readCompressed(h.blob[i:])
	if !ok {
		return nil
	}
	start := int(i) + size
	end := start + int(n)
	if end > len(h.blob) {
		return nil
	}
	return h.blob[start:end]
}

// readCompressed decodes an ECMA-335 compressed unsigned integer and returns
// the value and the number of bytes consumed.
func readCompressed(b []byte) (uint32, int, bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	switch {
	case b[0]&0x80 == 0:
		return uint32(b[0]), 1, true
	case b[0]&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, false
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), 2, true
	case b[0]&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, false
		}
		return uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), 4, true
	}
	return 0, 0, false
}

type streams struct {
	tables  []byte
	strings []byte
	blob    []byte
}

// parseRoot reads the metadata root header and locates the streams.
func parseRoot(root []byte) (*streams, error) {
	if len(root) < 16 || binary.LittleEndian.Uint32(root) != metadataSignature {
		return nil, fmt.Errorf("%w: missing metadata signature", ErrMalformed)
	}
	versionLen := int(binary.LittleEndian.Uint32(root[12:]))
	pos := 16 + versionLen
	if pos+4 > len(root) {
		return nil, fmt.Errorf("%w: truncated metadata root", ErrMalformed)
	}
	count := int(binary.LittleEndian.Uint16(root[pos+2:]))
	pos += 4

	s := &streams{}
	for i := 0; i < count; i++ {
		if pos+8 > len(root) {
			return nil, fmt.Errorf("%w: truncated stream header", ErrMalformed)
		}
		offset := int(binary.LittleEndian.Uint32(root[pos:]))
		size := int(binary.LittleEndian.Uint32(root[pos+4:]))
		pos += 8

		end := bytes.IndexByte(root[pos:], 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated stream name", ErrMalformed)
		}
		name := string(root[pos : pos+end])
		pos += (end + 4) &^ 3

		if offset+size > len(root) {
			return nil, fmt.Errorf("%w: stream %s out of bounds", ErrMalformed, name)
		}
		data := root[offset : offset+size]
		switch name {
		case "#~", "#-":
			s.tables = data
		case "#Strings":
			s.strings = data
		case "#Blob":
			s.blob = data
		}
	}

	if s.tables == nil {
		return nil, fmt.Errorf("%w: no table stream", ErrMalformed)
	}
	return s, nil
}
