// Package volume provides the dense 3D label volume shared by the ground
// truth and reconstruction sides of an evaluation, together with the
// image-stack I/O and label-extraction helpers that prepare volumes for it.
package volume

import (
	"fmt"
)

// Resolution is the physical size of one voxel along each axis, in
// millimeters.
type Resolution struct {
	X, Y, Z float64
}

// IsotropicResolution returns a resolution with the same voxel size along
// every axis.
func IsotropicResolution(size float64) Resolution {
	return Resolution{X: size, Y: size, Z: size}
}

// LabelVolume is a dense 3D array of region labels stored as a 1D slice in
// row-major order (x fastest, then y, then z), the same layout the rest of
// the pipeline assumes for slice-wise processing.
//
// A LabelVolume is written only during construction. Every component that
// consumes one treats it as read-only shared data; producing a modified
// volume always means cloning first.
type LabelVolume struct {
	// data holds the labels in row-major order
	data []uint64

	// width, height and depth are the voxel dimensions
	width  int
	height int
	depth  int

	// res is the physical voxel size
	res Resolution
}

// New creates a zero-filled label volume with the given voxel dimensions and
// resolution.
func New(width, height, depth int, res Resolution) (*LabelVolume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", width, height, depth)
	}
	return &LabelVolume{
		data:   make([]uint64, width*height*depth),
		width:  width,
		height: height,
		depth:  depth,
		res:    res,
	}, nil
}

// FromData wraps an existing row-major label slice. The slice is taken over
// by the volume and must not be modified afterwards.
func FromData(data []uint64, width, height, depth int, res Resolution) (*LabelVolume, error) {
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%d",
			len(data), width, height, depth)
	}
	v, err := New(width, height, depth, res)
	if err != nil {
		return nil, err
	}
	v.data = data
	return v, nil
}

// Width returns the number of voxels along x.
func (v *LabelVolume) Width() int { return v.width }

// Height returns the number of voxels along y.
func (v *LabelVolume) Height() int { return v.height }

// Depth returns the number of slices along z.
func (v *LabelVolume) Depth() int { return v.depth }

// NumVoxels returns the total voxel count.
func (v *LabelVolume) NumVoxels() int { return len(v.data) }

// Resolution returns the physical voxel size.
func (v *LabelVolume) Resolution() Resolution { return v.res }

// Index maps voxel coordinates to the linear index into the backing slice.
func (v *LabelVolume) Index(x, y, z int) int {
	return (z*v.height+y)*v.width + x
}

// Coords maps a linear index back to voxel coordinates.
func (v *LabelVolume) Coords(idx int) (x, y, z int) {
	x = idx % v.width
	y = (idx / v.width) % v.height
	z = idx / (v.width * v.height)
	return
}

// At returns the label at the given voxel coordinates.
func (v *LabelVolume) At(x, y, z int) uint64 {
	return v.data[v.Index(x, y, z)]
}

// AtIndex returns the label at a linear index.
func (v *LabelVolume) AtIndex(idx int) uint64 {
	return v.data[idx]
}

// SetAt sets the label at the given voxel coordinates. Only constructors and
// the corrector (on its own clone) may call this.
func (v *LabelVolume) SetAt(x, y, z int, label uint64) {
	v.data[v.Index(x, y, z)] = label
}

// SetAtIndex sets the label at a linear index.
func (v *LabelVolume) SetAtIndex(idx int, label uint64) {
	v.data[idx] = label
}

// Clone returns a deep copy of the volume.
func (v *LabelVolume) Clone() *LabelVolume {
	data := make([]uint64, len(v.data))
	copy(data, v.data)
	return &LabelVolume{
		data:   data,
		width:  v.width,
		height: v.height,
		depth:  v.depth,
		res:    v.res,
	}
}

// SameShape reports whether two volumes have identical voxel dimensions.
func (v *LabelVolume) SameShape(other *LabelVolume) bool {
	return v.width == other.width && v.height == other.height && v.depth == other.depth
}

// Sizes returns the voxel count of every label present in the volume.
func (v *LabelVolume) Sizes() map[uint64]int {
	sizes := make(map[uint64]int)
	for _, label := range v.data {
		sizes[label]++
	}
	return sizes
}

// Contains reports whether the given label occurs anywhere in the volume.
func (v *LabelVolume) Contains(label uint64) bool {
	for _, l := range v.data {
		if l == label {
			return true
		}
	}
	return false
}

// Equal reports whether two volumes have identical shape and labels.
func (v *LabelVolume) Equal(other *LabelVolume) bool {
	if !v.SameShape(other) {
		return false
	}
	for i, l := range v.data {
		if other.data[i] != l {
			return false
		}
	}
	return true
}
