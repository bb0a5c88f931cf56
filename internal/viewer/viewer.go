package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/xkilldash9x/wayfarer/internal/config"
	"github.com/xkilldash9x/wayfarer/internal/simulation"
	"go.uber.org/zap"
)

// Viewer drives a world at a fixed frame rate and draws it top-down on a
// terminal screen.
type Viewer struct {
	screen  tcell.Screen
	world   *simulation.World
	palette Palette
	fps     int
	logger  *zap.Logger

	pausedAll bool
}

// New creates a viewer. The caller owns screen and must Init and Fini it.
func New(screen tcell.Screen, world *simulation.World, cfg config.ViewerConfig, logger *zap.Logger) *Viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Viewer{
		screen:  screen,
		world:   world,
		palette: NewPalette(cfg),
		fps:     fps,
		logger:  logger.Named("viewer"),
	}
}

// Run ticks and redraws the world until ctx is done or the user quits.
// Keys: q, Esc or Ctrl-C quit; space pauses every agent; p toggles the
// first agent.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go v.screen.ChannelEvents(events, quit)
	defer func() {
		close(quit)
		// ChannelEvents closes events once it has returned.
		for range events {
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(v.fps))
	defer ticker.Stop()

	v.logger.Debug("Viewer started.", zap.Int("fps", v.fps))
	v.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || !v.handleEvent(ev) {
				return nil
			}
			v.draw()
		case <-ticker.C:
			if err := v.world.Tick(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
			v.draw()
		}
	}
}

func (v *Viewer) draw() {
	scene := SceneOf(v.world)
	scene.Paused = v.pausedAll
	Render(v.screen, scene, v.palette)
}

// handleEvent returns false when the viewer should stop.
func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) handleKey(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
		switch r {
		case 'q':
			return false
		case ' ':
			v.pausedAll = !v.pausedAll
			v.world.PauseAll(v.pausedAll)
			v.logger.Debug("Toggled pause.", zap.Bool("paused", v.pausedAll))
		case 'p':
			v.toggleFirst()
		}
	}
	return true
}

func (v *Viewer) toggleFirst() {
	agents := v.world.Registry().All()
	if len(agents) == 0 {
		return
	}
	a := agents[0]
	v.world.SetPaused(a.Name, !a.IsPaused())
}
