package collision

import "fmt"

// FieldKind says how a field descriptor is interpreted.
type FieldKind uint8

const (
	FieldNormal FieldKind = iota // no bitfield; color by face normal
	FieldRange                   // multi-valued field
	FieldSingle                  // single flag bit
)

// String returns a human-readable kind name.
func (k FieldKind) String() string {
	switch k {
	case FieldNormal:
		return "Normal"
	case FieldRange:
		return "Range"
	case FieldSingle:
		return "Single"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// FieldDescriptor extracts one semantic field from a PLC record as
// (Codes[Code] >> Shift) & Mask.
type FieldDescriptor struct {
	Kind  FieldKind
	Code  int
	Shift uint32
	Mask  uint32
	Name  string
}

func rangeField(code int, shift, mask uint32, name string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldRange, Code: code, Shift: shift, Mask: mask, Name: name}
}

func singleField(code int, shift uint32, name string) FieldDescriptor {
	return FieldDescriptor{Kind: FieldSingle, Code: code, Shift: shift, Mask: 1, Name: name}
}

// Well-known descriptor ids.
const (
	FieldIDNormal     = 0
	FieldIDPassObject = 3
	FieldIDPassArrow  = 6
	FieldIDGroundType = 20
	FieldIDClimbable  = 29
)

// fieldDescriptors is the game's packed-attribute layout. Read only.
var fieldDescriptors = [32]FieldDescriptor{
	{Kind: FieldNormal, Name: "Normal"},
	rangeField(0, 0, 0x3F, "Code 0 0x0000003F"),
	rangeField(0, 6, 0xFF, "Code 0 0x00003FC0"),
	singleField(0, 14, "Pass Object"),
	singleField(0, 15, "Pass Camera"),
	singleField(0, 16, "Pass Link"),
	singleField(0, 17, "Pass Arrow"),
	singleField(0, 18, "Pass Slingshot"),
	singleField(0, 19, "Pass Beetle"),
	singleField(0, 20, "Pass Clawshot"),
	singleField(0, 21, "Pass Z-Target"),
	singleField(0, 22, "Pass Shadow"),
	singleField(0, 23, "Pass Bomb"),
	singleField(0, 24, "Pass Whip"),
	rangeField(0, 28, 0x3, "Code 0 0x30000000"),
	singleField(0, 30, "Code 0 0x40000000"),
	singleField(0, 31, "Code 0 0x80000000"),
	rangeField(1, 0, 0xFF, "Code 1 0x000000FF"),
	rangeField(1, 8, 0xF, "Code 1 0x00000F00"),
	rangeField(1, 17, 0x7, "Code 1 0x000E0000"),
	rangeField(1, 20, 0x1F, "Ground Type"),
	singleField(1, 25, "Code 1 0x02000000"),
	singleField(1, 26, "Code 1 0x04000000"),
	singleField(1, 27, "Code 1 0x08000000"),
	rangeField(1, 28, 0xF, "Code 1 0xF0000000"),
	rangeField(2, 0, 0xFF, "Code 2 0x000000FF"),
	rangeField(2, 8, 0xFF, "Code 2 0x0000FF00"),
	rangeField(2, 16, 0xFF, "Code 2 0x00FF0000"),
	rangeField(2, 24, 0xFF, "Code 2 0xFF000000"),
	rangeField(3, 0, 0x1F, "Climbable (0xC vines)"),
	rangeField(3, 5, 0x3F, "Code 3 0x000007E0"),
	rangeField(4, 0, 0xFFFFFFFF, "Code 4"),
}

// FieldDescriptorCount returns the number of field descriptors (32).
func FieldDescriptorCount() int {
	return len(fieldDescriptors)
}

// Descriptor returns the descriptor with the given id.
func Descriptor(id int) (FieldDescriptor, bool) {
	if id < 0 || id >= len(fieldDescriptors) {
		return FieldDescriptor{}, false
	}
	return fieldDescriptors[id], true
}

// Descriptors returns a copy of the descriptor table.
func Descriptors() []FieldDescriptor {
	out := make([]FieldDescriptor, len(fieldDescriptors))
	copy(out, fieldDescriptors[:])
	return out
}

// Extract applies the descriptor to a record. It returns false for the
// Normal descriptor and for unknown ids.
func (e PLCEntry) Extract(id int) (uint32, bool) {
	d, ok := Descriptor(id)
	if !ok || d.Kind == FieldNormal {
		return 0, false
	}
	return d.Extract(e), true
}

// Extract returns the descriptor's field value in e. Normal yields 0.
func (d FieldDescriptor) Extract(e PLCEntry) uint32 {
	if d.Kind == FieldNormal {
		return 0
	}
	return (e.Codes[d.Code] >> d.Shift) & d.Mask
}

// Color is a linear RGBA color in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Diagnostic colors.
var (
	ColorHighlight = Color{0, 0.6, 0, 1}
	ColorFlagSet   = Color{0, 0.7, 0, 1}
	ColorFlagClear = Color{1, 1, 1, 1}
)

// Gray returns an opaque gray of intensity v.
func Gray(v float32) Color {
	return Color{v, v, v, 1}
}

// ClassifyColor maps a record's field to a display color. Range fields equal
// to selector are highlighted, others are shaded by value/mask; Single
// fields are green when set. It returns false for the Normal descriptor
// (the caller colors by geometry) and for unknown ids.
func ClassifyColor(e PLCEntry, id int, selector uint32) (Color, bool) {
	d, ok := Descriptor(id)
	if !ok {
		return Color{}, false
	}

	switch d.Kind {
	case FieldRange:
		v := d.Extract(e)
		if v == selector {
			return ColorHighlight, true
		}
		return Gray(float32(v) / float32(d.Mask)), true
	case FieldSingle:
		if d.Extract(e)&1 == 1 {
			return ColorFlagSet, true
		}
		return ColorFlagClear, true
	default:
		return Color{}, false
	}
}

// Matches reports whether (Codes[code] >> shift) & mask == value. An
// out-of-range code never matches.
func (e PLCEntry) Matches(code int, shift, mask, value uint32) bool {
	if code < 0 || code >= len(e.Codes) {
		return false
	}
	return (e.Codes[code]>>shift)&mask == value
}

func (e PLCEntry) bit(shift uint32) bool {
	return e.Codes[0]&(1<<shift) != 0
}

// PassObject reports whether objects pass through the surface.
func (e PLCEntry) PassObject() bool { return e.bit(14) }

// PassCamera reports whether the camera passes through the surface.
func (e PLCEntry) PassCamera() bool { return e.bit(15) }

// PassLink reports whether Link passes through the surface.
func (e PLCEntry) PassLink() bool { return e.bit(16) }

// PassArrow reports whether arrows pass through the surface.
func (e PLCEntry) PassArrow() bool { return e.bit(17) }

// PassSlingshot reports whether slingshot seeds pass through the surface.
func (e PLCEntry) PassSlingshot() bool { return e.bit(18) }

// PassBeetle reports whether the beetle passes through the surface.
func (e PLCEntry) PassBeetle() bool { return e.bit(19) }

// PassClawshot reports whether clawshots pass through the surface.
func (e PLCEntry) PassClawshot() bool { return e.bit(20) }

// PassTarget reports whether Z-targeting passes through the surface.
func (e PLCEntry) PassTarget() bool { return e.bit(21) }

// PassShadow reports whether shadows pass through the surface.
func (e PLCEntry) PassShadow() bool { return e.bit(22) }

// PassBomb reports whether bombs pass through the surface.
func (e PLCEntry) PassBomb() bool { return e.bit(23) }

// PassWhip reports whether the whip passes through the surface.
func (e PLCEntry) PassWhip() bool { return e.bit(24) }

// GroundType returns the 5-bit ground type (sound/effect material).
func (e PLCEntry) GroundType() uint32 {
	return fieldDescriptors[FieldIDGroundType].Extract(e)
}
