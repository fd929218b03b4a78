// Package metadata reads type definitions from the ECMA-335 metadata of a
// managed PE assembly.
package metadata

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrNotManaged is returned for PE images without a CLI header.
var ErrNotManaged = errors.New("not a managed assembly")

const clrHeaderDirectory = 14

// Open reads and parses the assembly at path.
func Open(path string) (*Assembly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading assembly: %w", err)
	}
	asm, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return asm, nil
}

// Parse parses a managed PE image.
func Parse(data []byte) (*Assembly, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading PE image: %w", err)
	}
	defer f.Close()

	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	}
	if len(dirs) <= clrHeaderDirectory || dirs[clrHeaderDirectory].VirtualAddress == 0 {
		return nil, ErrNotManaged
	}

	cli, err := sliceRVA(f, data, dirs[clrHeaderDirectory].VirtualAddress, dirs[clrHeaderDirectory].Size)
	if err != nil {
		return nil, fmt.Errorf("locating CLI header: %w", err)
	}
	if len(cli) < 16 {
		return nil, fmt.Errorf("%w: CLI header too short", ErrMalformed)
	}

	root, err := sliceRVA(f, data, binary.LittleEndian.Uint32(cli[8:]), binary.LittleEndian.Uint32(cli[12:]))
	if err != nil {
		return nil, fmt.Errorf("locating metadata root: %w", err)
	}
	return ParseMetadata(root)
}

func sliceRVA(f *pe.File, data []byte, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		span := max(s.VirtualSize, s.Size)
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+span {
			continue
		}
		off := int64(rva-s.VirtualAddress) + int64(s.Offset)
		end := off + int64(size)
		if end > int64(len(data)) {
			return nil, fmt.Errorf("%w: RVA 0x%x runs past end of file", ErrMalformed, rva)
		}
		return data[off:end], nil
	}
	return nil, fmt.Errorf("%w: RVA 0x%x not in any section", ErrMalformed, rva)
}

// ParseMetadata parses a raw metadata root (the blob starting with "BSJB").
func ParseMetadata(root []byte) (*Assembly, error) {
	s, err := parseRoot(root)
	if err != nil {
		return nil, err
	}
	ts, err := parseTableStream(s.tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return newReader(ts, &heaps{strings: s.strings, blob: s.blob}).assembly()
}
