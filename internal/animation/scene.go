// Package animation computes the per-frame parameters of the typing-reactive
// background scene. Rendering itself happens in the browser; this package only
// produces transforms, colors and light settings.
package animation

import (
	"fmt"
	"math/rand"

	colorful "github.com/lucasb-eyer/go-colorful"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Shape string

const (
	ShapeSphere Shape = "sphere"
	ShapeBox    Shape = "box"
	ShapeTorus  Shape = "torus"
)

// Object is one animated mesh with its resting position and base color.
type Object struct {
	Shape    Shape
	Position Vec3
	Color    colorful.Color
}

// NewObject parses a hex color such as "#3b82f6".
func NewObject(shape Shape, pos Vec3, hex string) (Object, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Object{}, fmt.Errorf("object color %q: %w", hex, err)
	}
	return Object{Shape: shape, Position: pos, Color: c}, nil
}

func mustObject(shape Shape, pos Vec3, hex string) Object {
	o, err := NewObject(shape, pos, hex)
	if err != nil {
		panic(err)
	}
	return o
}

// DefaultScene is the five-object layout shown behind the chat widget.
func DefaultScene() []Object {
	return []Object{
		mustObject(ShapeSphere, Vec3{X: -3}, "#3b82f6"),
		mustObject(ShapeBox, Vec3{}, "#8b5cf6"),
		mustObject(ShapeTorus, Vec3{X: 3}, "#06b6d4"),
		mustObject(ShapeSphere, Vec3{X: -1.5, Y: 2, Z: -2}, "#ec4899"),
		mustObject(ShapeTorus, Vec3{X: 1.5, Y: -2, Z: -2}, "#f59e0b"),
	}
}

const (
	ParticleCount  = 1000
	particleExtent = 20.0
)

// ParticlePositions scatters count points uniformly in a cube centred on the
// origin. The seed keeps the field stable for a session.
func ParticlePositions(count int, seed int64) []Vec3 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Vec3, count)
	for i := range out {
		out[i] = Vec3{
			X: (rng.Float64() - 0.5) * particleExtent,
			Y: (rng.Float64() - 0.5) * particleExtent,
			Z: (rng.Float64() - 0.5) * particleExtent,
		}
	}
	return out
}
