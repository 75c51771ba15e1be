package pipeline

import (
	"math"
	"time"

	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/scene"
)

// Easing maps linear progress in [0,1] to eased progress.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

// ElasticOut overshoots and settles like a released spring.
func ElasticOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	const period = 0.4
	const shift = period / 4
	return math.Pow(2, -10*t)*math.Sin((t-shift)*(2*math.Pi)/period) + 1
}

// Transition interpolates a mesh's positions from From to Target.Position.
// Nothing is committed until Delay has passed.
type Transition struct {
	Node     scene.Node
	Key      string
	Target   *mesh.Buffers
	Material scene.Material
	From     []float32
	Start    time.Time
	Delay    time.Duration
	Duration time.Duration
	Easing   Easing
}

// Progress returns the eased progress at now, whether the delay has passed
// and whether the transition is over. Eased progress may overshoot 1.
func (t *Transition) Progress(now time.Time) (p float64, started, done bool) {
	elapsed := now.Sub(t.Start) - t.Delay
	if elapsed < 0 {
		return 0, false, false
	}
	if t.Duration <= 0 || elapsed >= t.Duration {
		return 1, true, true
	}
	p = float64(elapsed) / float64(t.Duration)
	if t.Easing != nil {
		p = t.Easing(p)
	}
	return p, true, false
}

// Frame returns the mesh at eased progress p. Only positions are
// interpolated; the other buffers are shared with Target.
func (t *Transition) Frame(p float64) *mesh.Buffers {
	to := t.Target.Position
	position := make([]float32, len(to))
	for i := range position {
		a := float64(t.From[i])
		position[i] = float32((float64(to[i])-a)*p + a)
	}
	return &mesh.Buffers{
		Position: position,
		Normal:   t.Target.Normal,
		UV:       t.Target.UV,
		Indices:  t.Target.Indices,
	}
}

// Animator steps running transitions. It is owned by the engine's
// coordinator and is not safe for concurrent use.
type Animator struct {
	transitions map[string]*Transition
}

func NewAnimator() *Animator {
	return &Animator{transitions: make(map[string]*Transition)}
}

func animationKey(node scene.Node, key string) string {
	return string(node) + "/" + key
}

// Add starts t, replacing a running transition for the same mesh.
func (a *Animator) Add(t *Transition) {
	a.transitions[animationKey(t.Node, t.Key)] = t
}

// Stop drops every transition of node without committing.
func (a *Animator) Stop(node scene.Node) {
	for k, t := range a.transitions {
		if t.Node == node {
			delete(a.transitions, k)
		}
	}
}

// Restyle swaps the material of every running transition of node.
func (a *Animator) Restyle(node scene.Node, mat scene.Material) {
	for _, t := range a.transitions {
		if t.Node == node {
			t.Material = mat
		}
	}
}

func (a *Animator) Len() int {
	return len(a.transitions)
}

// Step commits the current frame of every started transition and drops
// finished ones. It returns the number of frames committed.
func (a *Animator) Step(now time.Time, r scene.Renderer) int {
	frames := 0
	for k, t := range a.transitions {
		p, started, done := t.Progress(now)
		if !started {
			continue
		}
		if done {
			r.Commit(t.Node, t.Key, t.Target, t.Material)
			delete(a.transitions, k)
		} else {
			r.Commit(t.Node, t.Key, t.Frame(p), t.Material)
		}
		frames++
	}
	return frames
}
