package collision

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePLC_ValidFile(t *testing.T) {
	records := [][5]uint32{
		{0x00004000, 0x01F00000, 0x11223344, 0x000007E0, 0xDEADBEEF},
		{0, 1, 2, 3, 4},
	}
	data := createTestPLC(records...)
	require.Equal(t, []byte{'S', 'P', 'L', 'C', 0x00, 0x14, 0x00, 0x02}, data[:8])

	plc, err := ParsePLC(data)
	require.NoError(t, err)
	require.Len(t, plc.Entries, 2)
	for i, r := range records {
		assert.Equal(t, r, plc.Entries[i].Codes, "record %d", i)
	}
}

func TestParsePLC_Errors(t *testing.T) {
	valid := createTestPLC([5]uint32{1, 2, 3, 4, 5})

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "XPLC")

	badStride := append([]byte(nil), valid...)
	badStride[5] = 0x10

	overCount := append([]byte(nil), valid...)
	overCount[7] = 3

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedBuffer},
		{"short header", []byte("SPLC\x00"), ErrTruncatedBuffer},
		{"bad magic", badMagic, ErrInvalidMagic},
		{"bad stride", badStride, ErrInvalidStride},
		{"truncated record", valid[:len(valid)-1], ErrTruncatedBuffer},
		{"count past end", overCount, ErrTruncatedBuffer},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePLC(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParsePLC_HeaderOnly(t *testing.T) {
	plc, err := ParsePLC(createTestPLC())
	require.NoError(t, err)
	assert.Empty(t, plc.Entries)
}

func TestPLC_Entry(t *testing.T) {
	plc, err := ParsePLC(createTestPLC([5]uint32{7}))
	require.NoError(t, err)

	e, err := plc.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), e.Codes[0])

	_, err = plc.Entry(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = plc.Entry(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestPLC_Dump(t *testing.T) {
	plc, err := ParsePLC(createTestPLC(
		[5]uint32{0x00004000, 0x01F00000, 0, 0xC, 0xFFFFFFFF},
		[5]uint32{1, 2, 3, 4, 5},
	))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, plc.Dump(&buf))
	assert.Equal(t,
		"00004000 01F00000 00000000 0000000C FFFFFFFF\n"+
			"00000001 00000002 00000003 00000004 00000005\n",
		buf.String())
}
