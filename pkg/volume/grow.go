package volume

// GrowSlices returns a copy of the volume in which, slice by slice, labeled
// regions have been grown into background until no background voxel remains.
// Each background voxel receives the label of the nearest labeled voxel in
// its slice (4-connected breadth-first wave, ties resolved by wave order).
// A slice consisting entirely of background is left unchanged.
func GrowSlices(vol *LabelVolume, background uint64) *LabelVolume {
	out := vol.Clone()

	sliceLen := vol.width * vol.height
	queue := make([]int, 0, sliceLen)

	for z := 0; z < vol.depth; z++ {
		base := z * sliceLen

		// seed the wave with every labeled voxel of the slice
		queue = queue[:0]
		for i := base; i < base+sliceLen; i++ {
			if out.data[i] != background {
				queue = append(queue, i)
			}
		}
		if len(queue) == 0 || len(queue) == sliceLen {
			continue
		}

		for head := 0; head < len(queue); head++ {
			idx := queue[head]
			label := out.data[idx]
			x, y, _ := out.Coords(idx)

			for _, n := range neighbors(out, x, y, z, Connect2D) {
				if out.data[n] == background {
					out.data[n] = label
					queue = append(queue, n)
				}
			}
		}
	}

	return out
}
