// Package wire implements the binary snapshot frame consumed by streaming
// collaborators. All multi-byte fields are little-endian and 4-byte
// aligned; the agent type bytes are padded out to the next 4-byte
// boundary.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/engine"
)

// ErrTruncatedFrame is returned when a frame is shorter than its declared
// layout.
var ErrTruncatedFrame = errors.New("truncated frame")

const (
	headerSize = 20
	statsSize  = 64

	resourceRecordSize = 24 // pos 12 + amount 4 + radius 4 + renewable 1 + pad 3
	groupRecordSize    = 36 // id 4 + size 4 + centroid 12 + velocity 12 + radius 4
)

// Stats is the fixed 64-byte aggregate block of a frame.
type Stats struct {
	MeanSpeed    float32
	StdSpeed     float32
	RadiusGyr    float32
	Polarization float32
	NGroups      uint32
}

// Resource is one record of the optional resource block.
type Resource struct {
	Pos       components.Vec3
	Amount    float32
	Radius    float32
	Renewable bool
}

// Group is one record of the optional group block.
type Group struct {
	ID       int32
	Size     int32
	Centroid components.Vec3
	Velocity components.Vec3
	Radius   float32
}

// Frame is a decoded snapshot frame.
type Frame struct {
	N    uint32
	Step uint32

	Positions  []components.Vec3
	Velocities []components.Vec3
	Types      []uint8
	Energies   []float32
	Targets    []int32
	GroupIDs   []int32

	Stats Stats

	Resources []Resource // nil when the block is absent
	Groups    []Group    // nil when the block is absent
}

// Encode serializes a snapshot into a frame. The target column carries the
// active behavioral target of each agent: prey id for predators, resource
// id otherwise. Resource and group blocks are emitted when the snapshot
// has entries for them.
func Encode(s *engine.Snapshot, stats Stats) []byte {
	n := s.N
	hasResources := len(s.Resources) > 0
	hasGroups := len(s.Groups) > 0

	size := headerSize +
		n*12 + n*12 + // positions, velocities
		pad4(n) + // types
		n*4 + n*4 + n*4 + // energies, targets, group labels
		statsSize
	if hasResources {
		size += 4 + len(s.Resources)*resourceRecordSize
	}
	if hasGroups {
		size += 4 + len(s.Groups)*groupRecordSize
	}

	buf := make([]byte, size)
	w := writer{buf: buf}

	w.u32(uint32(n))
	w.u32(uint32(s.Step))
	w.u8(boolByte(hasResources))
	w.u8(boolByte(hasGroups))
	w.skip(10)

	for i := 0; i < n; i++ {
		w.vec3(s.Pos[i])
	}
	for i := 0; i < n; i++ {
		w.vec3(s.Vel[i])
	}
	for i := 0; i < n; i++ {
		w.u8(uint8(s.Type[i]))
	}
	w.skip(pad4(n) - n)
	for i := 0; i < n; i++ {
		w.f32(s.Energy[i])
	}
	for i := 0; i < n; i++ {
		if s.Type[i].IsPredator() {
			w.i32(s.TargetPrey[i])
		} else {
			w.i32(s.TargetResource[i])
		}
	}
	for i := 0; i < n; i++ {
		w.i32(s.GroupID[i])
	}

	w.f32(stats.MeanSpeed)
	w.f32(stats.StdSpeed)
	w.f32(stats.RadiusGyr)
	w.f32(stats.Polarization)
	w.u32(stats.NGroups)
	w.skip(44)

	if hasResources {
		w.u32(uint32(len(s.Resources)))
		for _, r := range s.Resources {
			w.vec3(r.Pos)
			w.f32(r.Amount)
			w.f32(r.Radius)
			w.u8(boolByte(r.Renewable))
			w.skip(3)
		}
	}
	if hasGroups {
		w.u32(uint32(len(s.Groups)))
		for _, g := range s.Groups {
			w.i32(g.ID)
			w.i32(g.Size)
			w.vec3(g.Centroid)
			w.vec3(g.Velocity)
			w.f32(g.Radius)
		}
	}

	return buf
}

// Decode parses a frame back into structured form.
func Decode(buf []byte) (*Frame, error) {
	r := reader{buf: buf}

	if len(buf) < headerSize {
		return nil, ErrTruncatedFrame
	}

	f := &Frame{}
	f.N = r.u32()
	f.Step = r.u32()
	hasResources := r.u8() != 0
	hasGroups := r.u8() != 0
	r.skip(10)

	n := int(f.N)
	body := n*12 + n*12 + pad4(n) + n*4 + n*4 + n*4 + statsSize
	if len(buf) < headerSize+body {
		return nil, ErrTruncatedFrame
	}

	f.Positions = make([]components.Vec3, n)
	for i := range f.Positions {
		f.Positions[i] = r.vec3()
	}
	f.Velocities = make([]components.Vec3, n)
	for i := range f.Velocities {
		f.Velocities[i] = r.vec3()
	}
	f.Types = make([]uint8, n)
	for i := range f.Types {
		f.Types[i] = r.u8()
	}
	r.skip(pad4(n) - n)
	f.Energies = make([]float32, n)
	for i := range f.Energies {
		f.Energies[i] = r.f32()
	}
	f.Targets = make([]int32, n)
	for i := range f.Targets {
		f.Targets[i] = r.i32()
	}
	f.GroupIDs = make([]int32, n)
	for i := range f.GroupIDs {
		f.GroupIDs[i] = r.i32()
	}

	f.Stats.MeanSpeed = r.f32()
	f.Stats.StdSpeed = r.f32()
	f.Stats.RadiusGyr = r.f32()
	f.Stats.Polarization = r.f32()
	f.Stats.NGroups = r.u32()
	r.skip(44)

	if hasResources {
		if r.remaining() < 4 {
			return nil, ErrTruncatedFrame
		}
		count := int(r.u32())
		if r.remaining() < count*resourceRecordSize {
			return nil, ErrTruncatedFrame
		}
		f.Resources = make([]Resource, count)
		for i := range f.Resources {
			f.Resources[i] = Resource{
				Pos:       r.vec3(),
				Amount:    r.f32(),
				Radius:    r.f32(),
				Renewable: r.u8() != 0,
			}
			r.skip(3)
		}
	}
	if hasGroups {
		if r.remaining() < 4 {
			return nil, ErrTruncatedFrame
		}
		count := int(r.u32())
		if r.remaining() < count*groupRecordSize {
			return nil, ErrTruncatedFrame
		}
		f.Groups = make([]Group, count)
		for i := range f.Groups {
			f.Groups[i] = Group{
				ID:       r.i32(),
				Size:     r.i32(),
				Centroid: r.vec3(),
				Velocity: r.vec3(),
				Radius:   r.f32(),
			}
		}
	}

	return f, nil
}

// pad4 rounds n up to the next multiple of 4.
func pad4(n int) int {
	return (n + 3) &^ 3
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

type writer struct {
	buf []byte
	off int
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) i32(v int32) {
	w.u32(uint32(v))
}

func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) vec3(v components.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *writer) skip(n int) {
	w.off += n
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) vec3() components.Vec3 {
	return components.Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

func (r *reader) skip(n int) {
	r.off += n
}
