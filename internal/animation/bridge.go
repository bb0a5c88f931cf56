// Package animation maps an agent's per-step moving signal onto a pair of
// locomotion clips and cross-fades between them.
package animation

// CrossFade is the fade duration, in seconds, used for every clip switch.
const CrossFade = 0.2

// Action is a playable clip handle owned by the animation subsystem.
type Action interface {
	Name() string
	Reset()
	Play()
	FadeIn(duration float64)
	FadeOut(duration float64)
}

// Mixer advances every clip it owns by a caller supplied delta.
type Mixer interface {
	Update(dt float64)
}

// Bridge selects between an idle and a moving clip.
// Either handle may be nil when the clip failed to load.
type Bridge struct {
	mixer  Mixer
	idle   Action
	moving Action
	active Action
}

// NewBridge starts the idle clip, if present, and returns the bridge.
func NewBridge(mixer Mixer, idle, moving Action) *Bridge {
	b := &Bridge{mixer: mixer, idle: idle, moving: moving}
	if idle != nil {
		idle.Play()
		b.active = idle
	}
	return b
}

// Advance ticks the mixer. A zero delta is a valid pause.
func (b *Bridge) Advance(dt float64) {
	if b == nil || b.mixer == nil {
		return
	}
	b.mixer.Update(dt)
}

// Update switches to the clip matching moving and reports whether a switch
// happened. It never switches to a missing clip and never re-triggers the
// active one.
func (b *Bridge) Update(moving bool) bool {
	if b == nil {
		return false
	}
	desired := b.idle
	if moving {
		desired = b.moving
	}
	if desired == nil || desired == b.active {
		return false
	}

	if b.active != nil {
		b.active.FadeOut(CrossFade)
	}
	desired.Reset()
	desired.FadeIn(CrossFade)
	desired.Play()
	b.active = desired
	return true
}

// Active returns the clip currently faded in, or nil.
func (b *Bridge) Active() Action {
	if b == nil {
		return nil
	}
	return b.active
}

// ActiveName returns the active clip's name or "" when none is playing.
func (b *Bridge) ActiveName() string {
	if a := b.Active(); a != nil {
		return a.Name()
	}
	return ""
}
