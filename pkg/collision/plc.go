package collision

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	plcMagic      = "SPLC"
	plcStride     = 0x14
	plcHeaderSize = 8
)

// PLCEntry is one attribute record: five packed 32-bit codes whose meaning
// is defined by the field descriptor table.
type PLCEntry struct {
	Codes [5]uint32
}

// PLC is a decoded attribute table. Geometry refers to entries by index.
type PLC struct {
	Entries []PLCEntry
}

// ParsePLC parses a PLC file from raw bytes.
func ParsePLC(data []byte) (*PLC, error) {
	if len(data) < plcHeaderSize {
		return nil, decodeErr(ErrTruncatedBuffer, "plc.header", -1, 0,
			"file is %d bytes, header needs %d", len(data), plcHeaderSize)
	}

	if string(data[0:4]) != plcMagic {
		return nil, decodeErr(ErrInvalidMagic, "plc.header", -1, 0, "got %q", data[0:4])
	}

	stride := binary.BigEndian.Uint16(data[4:6])
	count := binary.BigEndian.Uint16(data[6:8])
	if stride != plcStride {
		return nil, decodeErr(ErrInvalidStride, "plc.header", -1, 4,
			"got 0x%X, expected 0x%X", stride, plcStride)
	}

	c := newCursor(data)
	if err := c.seek(plcHeaderSize); err != nil {
		return nil, at(err, "plc.header", -1)
	}

	p := &PLC{Entries: make([]PLCEntry, count)}
	for i := range p.Entries {
		if err := c.u32s(p.Entries[i].Codes[:]); err != nil {
			return nil, at(err, "plc.entries", i)
		}
	}
	return p, nil
}

// ParsePLCFile parses a PLC file from disk.
func ParsePLCFile(path string) (*PLC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLC file: %w", err)
	}
	return ParsePLC(data)
}

// Entry returns the record at index, failing with ErrIndexOutOfRange.
func (p *PLC) Entry(index int) (PLCEntry, error) {
	if index < 0 || index >= len(p.Entries) {
		return PLCEntry{}, decodeErr(ErrIndexOutOfRange, "plc.entries", index, -1,
			"table has %d entries", len(p.Entries))
	}
	return p.Entries[index], nil
}

// Dump writes one line of five hex codes per record.
func (p *PLC) Dump(w io.Writer) error {
	for _, e := range p.Entries {
		c := e.Codes
		if _, err := fmt.Fprintf(w, "%08X %08X %08X %08X %08X\n", c[0], c[1], c[2], c[3], c[4]); err != nil {
			return err
		}
	}
	return nil
}
