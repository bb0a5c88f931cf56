package animation

import "math"

// Clip is an in-process Action that tracks playback time and blend weight.
// The headless host uses it where no renderer supplies real clips.
type Clip struct {
	name    string
	playing bool
	time    float64
	weight  float64
	// fadeRate is weight change per second; zero when not fading.
	fadeRate float64
}

func (c *Clip) Name() string { return c.name }

func (c *Clip) Reset() {
	c.time = 0
	c.fadeRate = 0
}

func (c *Clip) Play() { c.playing = true }

func (c *Clip) FadeIn(duration float64) {
	if duration <= 0 {
		c.weight = 1
		c.fadeRate = 0
		return
	}
	c.fadeRate = 1 / duration
}

func (c *Clip) FadeOut(duration float64) {
	if duration <= 0 {
		c.weight = 0
		c.fadeRate = 0
		c.playing = false
		return
	}
	c.fadeRate = -1 / duration
}

// Weight is the current blend weight in [0,1].
func (c *Clip) Weight() float64 { return c.weight }

// Time is the playback position in seconds since the last Reset.
func (c *Clip) Time() float64 { return c.time }

// Playing reports whether the clip contributes to the pose.
func (c *Clip) Playing() bool { return c.playing }

func (c *Clip) advance(dt float64) {
	if !c.playing {
		return
	}
	c.time += dt
	if c.fadeRate == 0 {
		return
	}
	c.weight = math.Max(0, math.Min(1, c.weight+c.fadeRate*dt))
	if c.weight == 1 || c.weight == 0 {
		if c.weight == 0 {
			c.playing = false
		}
		c.fadeRate = 0
	}
}

// Clock is a Mixer over Clips.
type Clock struct {
	clips []*Clip
}

// NewClock returns an empty mixer.
func NewClock() *Clock { return &Clock{} }

// Clip creates a clip owned by this mixer.
func (m *Clock) Clip(name string) *Clip {
	c := &Clip{name: name}
	m.clips = append(m.clips, c)
	return c
}

// Update advances every clip by dt.
func (m *Clock) Update(dt float64) {
	for _, c := range m.clips {
		c.advance(dt)
	}
}

// NewClipBridge builds a bridge over a fresh Clock with the two named clips.
// The idle clip starts at full weight.
func NewClipBridge(idleName, movingName string) (*Bridge, *Clock) {
	clock := NewClock()
	idle := clock.Clip(idleName)
	idle.weight = 1
	return NewBridge(clock, idle, clock.Clip(movingName)), clock
}
