package keys

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// MaxCoord is the largest coordinate a Z-order key can hold per axis.
const MaxCoord = 1023

// Box is an axis-aligned 3-D box with inclusive bounds.
type Box struct {
	MinX, MinY, MinZ uint32
	MaxX, MaxY, MaxZ uint32
}

func part1By2(n uint32) uint64 {
	x := uint64(n)
	x &= 0x000003ff
	x = (x ^ (x << 16)) & 0xff0000ff
	x = (x ^ (x << 8)) & 0x0300f00f
	x = (x ^ (x << 4)) & 0x030c30c3
	x = (x ^ (x << 2)) & 0x09249249
	return x
}

func compact1By2(x uint64) uint32 {
	x &= 0x09249249
	x = (x ^ (x >> 2)) & 0x030c30c3
	x = (x ^ (x >> 4)) & 0x0300f00f
	x = (x ^ (x >> 8)) & 0xff0000ff
	x = (x ^ (x >> 16)) & 0x000003ff
	return uint32(x)
}

// Encode3D interleaves the coordinate bits into a single int64 key.
func Encode3D(x, y, z uint32) (int64, error) {
	if x > MaxCoord || y > MaxCoord || z > MaxCoord {
		return 0, errors.New("coordinate out of bounds (max 1023)")
	}
	return int64(part1By2(z)<<2 | part1By2(y)<<1 | part1By2(x)), nil
}

// Decode3D is the inverse of Encode3D.
func Decode3D(code int64) (x, y, z uint32) {
	k := uint64(code)
	return compact1By2(k), compact1By2(k >> 1), compact1By2(k >> 2)
}

// Contains reports whether the Z-order key lies inside b.
func (b Box) Contains(code int64) bool {
	x, y, z := Decode3D(code)
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// BoxRanges decomposes b into the minimal list of closed Z-order key ranges
// covering it, in ascending order.
func BoxRanges(b Box) ([]KeyRange[int64], error) {
	if b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ {
		return nil, errors.New("invalid bounding box")
	}
	if b.MaxX > MaxCoord || b.MaxY > MaxCoord || b.MaxZ > MaxCoord {
		return nil, errors.New("coordinate out of bounds (max 1023)")
	}

	var spans [][2]int64
	decompose(0, 0, 0, MaxCoord+1, b, 0, &spans)
	spans = mergeSpans(spans)

	d := Int64Domain()
	out := make([]KeyRange[int64], 0, len(spans))
	for _, s := range spans {
		r, err := d.Closed(s[0], s[1])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// decompose walks the octree of cube (cx, cy, cz, w) and records the Z-order
// spans of the cells fully covered by b.
func decompose(cx, cy, cz, w uint32, b Box, zStart int64, acc *[][2]int64) {
	if cx+w <= b.MinX || cx > b.MaxX || cy+w <= b.MinY || cy > b.MaxY || cz+w <= b.MinZ || cz > b.MaxZ {
		return
	}
	if cx >= b.MinX && cx+w <= b.MaxX+1 && cy >= b.MinY && cy+w <= b.MaxY+1 && cz >= b.MinZ && cz+w <= b.MaxZ+1 {
		size := int64(w) * int64(w) * int64(w)
		*acc = append(*acc, [2]int64{zStart, zStart + size - 1})
		return
	}

	half := w / 2
	if half == 0 {
		*acc = append(*acc, [2]int64{zStart, zStart})
		return
	}
	step := int64(half) * int64(half) * int64(half)

	// children in Z order: bit 0 = x, bit 1 = y, bit 2 = z
	for i := int64(0); i < 8; i++ {
		ox, oy, oz := uint32(i&1)*half, uint32(i>>1&1)*half, uint32(i>>2&1)*half
		decompose(cx+ox, cy+oy, cz+oz, half, b, zStart+step*i, acc)
	}
}

// mergeSpans joins adjacent spans.
func mergeSpans(spans [][2]int64) [][2]int64 {
	if len(spans) == 0 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	merged := spans[:1]
	for _, next := range spans[1:] {
		curr := &merged[len(merged)-1]
		if curr[1]+1 == next[0] {
			curr[1] = next[1]
		} else {
			merged = append(merged, next)
		}
	}
	return merged
}
