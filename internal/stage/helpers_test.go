package stage

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func writeBE(buf *bytes.Buffer, vals ...any) {
	for _, v := range vals {
		binary.Write(buf, binary.BigEndian, v)
	}
}

// plcBytes builds a table of n records whose first word is the record index.
func plcBytes(n int) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("SPLC")
	writeBE(buf, uint16(0x14), uint16(n))
	for i := 0; i < n; i++ {
		writeBE(buf, [5]uint32{uint32(i), 0, 0, 0, 0})
	}
	return buf.Bytes()
}

// dzbBytes builds a flat mesh of one quad split into two triangles that
// reference properties 0 and prop.
func dzbBytes(prop uint16) []byte {
	verts := [][3]float32{{0, 0, 0}, {0, 0, 10}, {10, 0, 0}, {10, 0, 10}}
	tris := [][5]uint16{{0, 1, 2, 0, 0}, {1, 3, 2, prop, 0}}

	const header = 13 * 4
	vertOff := uint32(header)
	triOff := vertOff + 12*uint32(len(verts))
	end := triOff + 10*uint32(len(tris))

	buf := new(bytes.Buffer)
	writeBE(buf,
		uint32(len(verts)), vertOff,
		uint32(len(tris)), triOff,
		uint32(0), end, // blocks
		uint32(0), end, // nodes
		uint32(0), end, // groups
		uint32(0), end, // properties
		uint32(0),
	)
	for _, v := range verts {
		writeBE(buf, v)
	}
	for _, t := range tris {
		writeBE(buf, t)
	}
	return buf.Bytes()
}

// kclBytes builds a prism file whose octree is a single empty leaf.
func kclBytes() []byte {
	const header = 0x38
	buf := new(bytes.Buffer)
	writeBE(buf,
		uint32(header), uint32(header), uint32(header), uint32(header),
		float32(0),
		[3]float32{0, 0, 0},
		uint32(0xFFFFFFFE), uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), // one root child
		uint32(0), uint32(0), uint32(0),
	)
	// Root child: leaf pointer to 0x3C, entries start at 0x3E.
	writeBE(buf, uint32(0x80000004), uint16(0), uint16(0))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// stageTree lays out a small stage directory:
//
//	F000/addon/stage.dzb + stage.plc
//	F000/rooms/r00/r00.kcl.zst + r00.plc
//	F000/rooms/r01/room.kcl + table.plc   (paired by elimination)
//	F000/oarc/Door/door.dzb               (no table)
//	F000/oarc/Door/notes.txt              (ignored)
func stageTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "F000", "addon", "stage.dzb"), dzbBytes(1))
	writeFile(t, filepath.Join(root, "F000", "addon", "stage.plc"), plcBytes(2))
	writeFile(t, filepath.Join(root, "F000", "rooms", "r00", "r00.kcl.zst"), zstdBytes(t, kclBytes()))
	writeFile(t, filepath.Join(root, "F000", "rooms", "r00", "r00.plc"), plcBytes(1))
	writeFile(t, filepath.Join(root, "F000", "rooms", "r01", "room.kcl"), kclBytes())
	writeFile(t, filepath.Join(root, "F000", "rooms", "r01", "table.plc"), plcBytes(1))
	writeFile(t, filepath.Join(root, "F000", "oarc", "Door", "door.dzb"), dzbBytes(0))
	writeFile(t, filepath.Join(root, "F000", "oarc", "Door", "notes.txt"), []byte("hi"))
	return root
}
