package behavior

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/xkilldash9x/wayfarer/internal/agent"
)

// reverseDot is the forward/direction dot product at or below which a turn is
// treated as a full reversal.
const reverseDot = -0.9999

var up = mgl64.Vec3{0, 1, 0}

// face turns the agent toward the horizontal unit direction dir. A reversal
// is snapped by half a turn about +Y; anything else is slerped by TurnSpeed.
func (m *Machine) face(a *agent.Agent, dir mgl64.Vec3) {
	if a.Forward().Dot(dir) <= reverseDot {
		a.Orientation = mgl64.QuatRotate(math.Pi, up).Mul(a.Orientation).Normalize()
		return
	}
	amount := math.Max(0, math.Min(1, a.Config().TurnSpeed))
	a.Orientation = slerpShortest(a.Orientation, headingQuat(dir), amount)
}

// headingQuat is the yaw rotation taking +Z onto the horizontal direction dir.
func headingQuat(dir mgl64.Vec3) mgl64.Quat {
	return mgl64.QuatRotate(math.Atan2(dir[0], dir[2]), up)
}

func slerpShortest(from, to mgl64.Quat, amount float64) mgl64.Quat {
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, amount).Normalize()
}
