package collision

// HasWorldVolume is anything the oracle can test against: a single box or a
// hierarchy of boxes such as a building or a vehicle assembly.
type HasWorldVolume interface {
	// ID identifies the obstacle so an agent can exclude itself.
	ID() string
	// Collidable reports whether the obstacle takes part in collision tests.
	Collidable() bool
	// EachVolume calls visit with every leaf volume in world space and stops as
	// soon as visit returns true. It returns whether it was stopped.
	EachVolume(visit func(AABB) bool) bool
}

// Leaf is an obstacle with a single world-space volume.
type Leaf struct {
	id        string
	box       AABB
	noCollide bool
}

// NewLeaf returns a collidable leaf.
func NewLeaf(id string, box AABB) *Leaf {
	return &Leaf{id: id, box: box}
}

func (l *Leaf) ID() string       { return l.id }
func (l *Leaf) Collidable() bool { return !l.noCollide }

// Box returns the current volume.
func (l *Leaf) Box() AABB { return l.box }

// SetBox moves or resizes the leaf. Owners call this between frames.
func (l *Leaf) SetBox(b AABB) { l.box = b }

// SetCollidable toggles participation in collision tests.
func (l *Leaf) SetCollidable(c bool) { l.noCollide = !c }

func (l *Leaf) EachVolume(visit func(AABB) bool) bool {
	return visit(l.box)
}

// Group is a composite obstacle. Children may themselves be groups.
type Group struct {
	id        string
	children  []HasWorldVolume
	noCollide bool
}

// NewGroup returns a collidable group over children.
func NewGroup(id string, children ...HasWorldVolume) *Group {
	return &Group{id: id, children: children}
}

func (g *Group) ID() string       { return g.id }
func (g *Group) Collidable() bool { return !g.noCollide }

// SetCollidable toggles participation in collision tests for the whole hierarchy.
func (g *Group) SetCollidable(c bool) { g.noCollide = !c }

// Add appends children.
func (g *Group) Add(children ...HasWorldVolume) { g.children = append(g.children, children...) }

// Children returns the direct children.
func (g *Group) Children() []HasWorldVolume { return g.children }

// EachVolume walks every descendant leaf depth first. Non-collidable children
// are skipped along with their subtrees.
func (g *Group) EachVolume(visit func(AABB) bool) bool {
	for _, c := range g.children {
		if c == nil || !c.Collidable() {
			continue
		}
		if c.EachVolume(visit) {
			return true
		}
	}
	return false
}

// WorldVolume returns the union of every leaf volume of o. ok is false when o
// has no non-empty leaves.
func WorldVolume(o HasWorldVolume) (box AABB, ok bool) {
	box = EmptyAABB()
	o.EachVolume(func(v AABB) bool {
		box = box.Union(v)
		return false
	})
	return box, !box.IsEmpty()
}
