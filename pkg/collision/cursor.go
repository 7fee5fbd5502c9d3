package collision

import (
	"encoding/binary"
	"errors"
	"math"

	cmath "github.com/Faultbox/ss-collision/pkg/math"
)

// cursor is a seekable big-endian reader over a fully buffered file.
// Every read is bounds checked and fails with ErrTruncatedBuffer instead of
// panicking.
type cursor struct {
	data []byte
	pos  int64
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) len() int64 {
	return int64(len(c.data))
}

// seek moves to an absolute offset. Seeking to exactly len(data) is allowed;
// the next read will fail.
func (c *cursor) seek(off int64) error {
	if off < 0 || off > c.len() {
		return &DecodeError{
			Index:  -1,
			Offset: off,
			Detail: "seek past end of buffer",
			Err:    ErrTruncatedBuffer,
		}
	}
	c.pos = off
	return nil
}

func (c *cursor) take(n int64) ([]byte, error) {
	if c.pos+n > c.len() {
		return nil, decodeErr(ErrTruncatedBuffer, "", -1, c.pos,
			"need %d bytes, %d left", n, c.len()-c.pos)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) i16() (int16, error) {
	v, err := c.u16()
	return int16(v), err
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) f32() (float32, error) {
	v, err := c.u32()
	return math.Float32frombits(v), err
}

func (c *cursor) vec3() (cmath.Vec3, error) {
	b, err := c.take(12)
	if err != nil {
		return cmath.Vec3{}, err
	}
	return cmath.Vec3{
		X: math.Float32frombits(binary.BigEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.BigEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.BigEndian.Uint32(b[8:])),
	}, nil
}

// u16s fills dst in order.
func (c *cursor) u16s(dst []uint16) error {
	b, err := c.take(int64(2 * len(dst)))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return nil
}

// u32s fills dst in order.
func (c *cursor) u32s(dst []uint32) error {
	b, err := c.take(int64(4 * len(dst)))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return nil
}

// at stamps a cursor error with the section and record it occurred in.
func at(err error, section string, index int) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Section == "" {
		de.Section = section
		de.Index = index
		return de
	}
	return err
}
