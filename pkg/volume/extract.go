package volume

// Connectivity selects the neighborhood used when extracting connected
// components from a foreground/background mask.
type Connectivity int

const (
	// Connect2D labels 4-connected components independently per slice.
	Connect2D Connectivity = iota

	// Connect3D labels 6-connected components across the whole volume.
	Connect3D
)

// ExtractLabels relabels a foreground/background mask volume so that every
// connected foreground component receives its own label, starting at 1.
// Voxels equal to background keep the background label. This prepares a
// binary ground truth for evaluation against a labeled reconstruction.
func ExtractLabels(mask *LabelVolume, background uint64, conn Connectivity) *LabelVolume {
	out, _ := New(mask.width, mask.height, mask.depth, mask.res)
	for i := range out.data {
		out.data[i] = background
	}

	next := uint64(1)
	if next == background {
		next++
	}

	visited := make([]bool, len(mask.data))
	stack := make([]int, 0, 1024)

	for start, label := range mask.data {
		if label == background || visited[start] {
			continue
		}

		// flood fill one component
		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out.data[idx] = next

			x, y, z := mask.Coords(idx)
			for _, n := range neighbors(mask, x, y, z, conn) {
				if !visited[n] && mask.data[n] != background {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}

		next++
		if next == background {
			next++
		}
	}

	return out
}

// neighbors returns the linear indices of the in-bounds neighbors of a voxel
// under the given connectivity.
func neighbors(v *LabelVolume, x, y, z int, conn Connectivity) []int {
	ns := make([]int, 0, 6)
	if x > 0 {
		ns = append(ns, v.Index(x-1, y, z))
	}
	if x < v.width-1 {
		ns = append(ns, v.Index(x+1, y, z))
	}
	if y > 0 {
		ns = append(ns, v.Index(x, y-1, z))
	}
	if y < v.height-1 {
		ns = append(ns, v.Index(x, y+1, z))
	}
	if conn == Connect3D {
		if z > 0 {
			ns = append(ns, v.Index(x, y, z-1))
		}
		if z < v.depth-1 {
			ns = append(ns, v.Index(x, y, z+1))
		}
	}
	return ns
}
