package collision

import (
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Below this many leaves a linear scan beats building the tree.
	linearScanLimit = 16
	// rtreego rejects zero-length rects and treats touching rects as disjoint,
	// while the oracle is inclusive. Every rect is grown by this much.
	rectPad = 1e-6

	treeMinChildren = 25
	treeMaxChildren = 50
)

// Snapshot is a read-only view of one frame's obstacle list. It caches every
// leaf volume on first use and, for larger lists, indexes them in an R-tree.
// Answers match Intersects over the same list as it was when the cache was built.
type Snapshot struct {
	obstacles []HasWorldVolume

	once       sync.Once
	leaves     []*leafEntry
	footprints []footprint
	tree       *rtreego.Rtree
}

type leafEntry struct {
	owner string
	box   AABB
	rect  rtreego.Rect
}

func (e *leafEntry) Bounds() rtreego.Rect { return e.rect }

type footprint struct {
	owner  string
	center mgl64.Vec3
}

// NewSnapshot wraps obstacles. The slice is not copied; callers must not
// modify it while the snapshot is in use.
func NewSnapshot(obstacles []HasWorldVolume) *Snapshot {
	return &Snapshot{obstacles: obstacles}
}

// Obstacles returns the wrapped list.
func (s *Snapshot) Obstacles() []HasWorldVolume { return s.obstacles }

// Len is the number of cached non-degenerate leaf volumes.
func (s *Snapshot) Len() int {
	s.build()
	return len(s.leaves)
}

func (s *Snapshot) build() {
	s.once.Do(func() {
		for _, o := range s.obstacles {
			if skip(o, "") {
				continue
			}
			id := o.ID()
			o.EachVolume(func(v AABB) bool {
				if !v.IsDegenerate() {
					s.leaves = append(s.leaves, &leafEntry{owner: id, box: v, rect: toRect(v)})
				}
				return false
			})
			if box, ok := WorldVolume(o); ok && !box.IsDegenerate() {
				s.footprints = append(s.footprints, footprint{owner: id, center: box.Center()})
			}
		}
		if len(s.leaves) > linearScanLimit {
			s.tree = rtreego.NewTree(3, treeMinChildren, treeMaxChildren)
			for _, e := range s.leaves {
				s.tree.Insert(e)
			}
		}
	})
}

// Intersects is the indexed form of the package level Intersects.
func (s *Snapshot) Intersects(candidate AABB, exclude string) bool {
	if candidate.IsDegenerate() {
		return false
	}
	s.build()
	hit := func(e *leafEntry) bool {
		return (exclude == "" || e.owner != exclude) && e.box.Overlaps(candidate)
	}
	if s.tree == nil {
		for _, e := range s.leaves {
			if hit(e) {
				return true
			}
		}
		return false
	}
	for _, sp := range s.tree.SearchIntersect(toRect(candidate)) {
		if hit(sp.(*leafEntry)) {
			return true
		}
	}
	return false
}

// Nearby returns the centers of obstacles whose overall volume is centered
// within radius of center on both the x and z axes.
func (s *Snapshot) Nearby(center mgl64.Vec3, radius float64, exclude string) []mgl64.Vec3 {
	s.build()
	var out []mgl64.Vec3
	for _, f := range s.footprints {
		if exclude != "" && f.owner == exclude {
			continue
		}
		if math.Abs(f.center[0]-center[0]) <= radius && math.Abs(f.center[2]-center[2]) <= radius {
			out = append(out, f.center)
		}
	}
	return out
}

func toRect(b AABB) rtreego.Rect {
	p := rtreego.Point{b.Min[0] - rectPad, b.Min[1] - rectPad, b.Min[2] - rectPad}
	size := b.Size()
	lengths := []float64{size[0] + 2*rectPad, size[1] + 2*rectPad, size[2] + 2*rectPad}
	r, err := rtreego.NewRect(p, lengths)
	if err != nil {
		// Only reachable with non-finite input, which the degenerate checks
		// already filter out.
		panic(err)
	}
	return r
}
