// Package collision implements the AABB collision oracle used to test a moving
// agent's candidate volume against the obstacles of the current frame.
//
// The oracle is a pure function. It never mutates obstacles and never fails:
// empty lists, non-collidable nodes and degenerate volumes simply produce no hit.
package collision

// Intersects reports whether candidate overlaps any leaf volume of any collidable
// obstacle. Obstacles whose ID equals exclude are skipped so an agent can be
// tested against a list that contains itself. Groups short-circuit on the first
// overlapping leaf.
func Intersects(candidate AABB, obstacles []HasWorldVolume, exclude string) bool {
	if candidate.IsDegenerate() {
		return false
	}
	hit := func(v AABB) bool {
		return !v.IsDegenerate() && v.Overlaps(candidate)
	}
	for _, o := range obstacles {
		if skip(o, exclude) {
			continue
		}
		if o.EachVolume(hit) {
			return true
		}
	}
	return false
}

func skip(o HasWorldVolume, exclude string) bool {
	if o == nil || !o.Collidable() {
		return true
	}
	return exclude != "" && o.ID() == exclude
}
