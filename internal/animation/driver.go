package animation

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	BaseRotationSpeed = 0.005
	typingSpeedFactor = 4.0
	yAxisRatio        = 1.2
	floatAmplitude    = 0.2
	pulseFrequency    = 10.0
	pulseAmplitude    = 0.1
	typingColorGain   = 1.5
	typingEmissive    = 0.2
)

var (
	particleTyping = mustHex("#60a5fa")
	particleIdle   = mustHex("#1e40af")
	lightTyping    = mustHex("#60a5fa")
	lightIdle      = mustHex("#ffffff")
	pointLight     = mustHex("#a855f7")
	black          = colorful.Color{}
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Color holds unclamped sRGB components, as parsed from the scene's hex
// colors. Typing brightens past 1.0 the way the renderer's material color does.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

func fromColorful(c colorful.Color) Color { return Color{R: c.R, G: c.G, B: c.B} }

func scaleColor(c colorful.Color, k float64) Color {
	return Color{R: c.R * k, G: c.G * k, B: c.B * k}
}

type ObjectFrame struct {
	Shape    Shape   `json:"shape"`
	Rotation Vec3    `json:"rotation"`
	Position Vec3    `json:"position"`
	Scale    float64 `json:"scale"`
	Color    Color   `json:"color"`
	Emissive Color   `json:"emissive"`
}

type ParticleFrame struct {
	Rotation Vec3    `json:"rotation"`
	Size     float64 `json:"size"`
	Opacity  float64 `json:"opacity"`
	Color    Color   `json:"color"`
}

type Light struct {
	Intensity float64 `json:"intensity"`
	Color     Color   `json:"color"`
}

type Lights struct {
	Ambient     float64 `json:"ambient"`
	Directional Light   `json:"directional"`
	Point       Light   `json:"point"`
}

// Frame is everything the renderer needs for one tick.
type Frame struct {
	Elapsed         float64       `json:"elapsed"`
	Typing          bool          `json:"typing"`
	Objects         []ObjectFrame `json:"objects"`
	Particles       ParticleFrame `json:"particles"`
	Lights          Lights        `json:"lights"`
	AutoRotateSpeed float64       `json:"autoRotateSpeed"`
}

// RotationIncrement is the per-frame angle added on the x and y axes.
func RotationIncrement(typing bool) (dx, dy float64) {
	speed := BaseRotationSpeed
	if typing {
		speed *= typingSpeedFactor
	}
	return speed, speed * yAxisRatio
}

// FloatOffset is the vertical bob applied to an object resting at x.
func FloatOffset(elapsed, x float64) float64 {
	return math.Sin(elapsed+x) * floatAmplitude
}

// Scale pulses only while typing.
func Scale(typing bool, elapsed float64) float64 {
	if !typing {
		return 1
	}
	return 1 + math.Sin(elapsed*pulseFrequency)*pulseAmplitude
}

// Tint returns the material color and emissive glow for base.
func Tint(base colorful.Color, typing bool) (color, emissive Color) {
	if typing {
		return scaleColor(base, typingColorGain), scaleColor(base, typingEmissive)
	}
	return fromColorful(base), fromColorful(black)
}

// ParticleIntensity scales the background field's motion.
func ParticleIntensity(typing bool) float64 {
	if typing {
		return 2
	}
	return 0.5
}

func Particles(typing bool, elapsed float64) ParticleFrame {
	k := ParticleIntensity(typing)
	p := ParticleFrame{
		Rotation: Vec3{X: elapsed * 0.05 * k, Y: elapsed * 0.02 * k},
		Size:     0.02,
		Opacity:  0.4,
		Color:    fromColorful(particleIdle),
	}
	if typing {
		p.Size = 0.05
		p.Opacity = 0.8
		p.Color = fromColorful(particleTyping)
	}
	return p
}

func SceneLights(typing bool) Lights {
	l := Lights{
		Ambient:     0.4,
		Directional: Light{Intensity: 1, Color: fromColorful(lightIdle)},
		Point:       Light{Intensity: 0.5, Color: fromColorful(pointLight)},
	}
	if typing {
		l.Directional = Light{Intensity: 1.5, Color: fromColorful(lightTyping)}
		l.Point.Intensity = 0.8
	}
	return l
}

func AutoRotateSpeed(typing bool) float64 {
	if typing {
		return 2
	}
	return 0.5
}

// Driver holds the accumulated rotation of each object. Everything else in a
// Frame is a function of (typing, elapsed).
type Driver struct {
	objects   []Object
	rotations []Vec3
}

func NewDriver(objects []Object) *Driver {
	return &Driver{
		objects:   append([]Object(nil), objects...),
		rotations: make([]Vec3, len(objects)),
	}
}

// Step advances one rendered frame. elapsed is in seconds.
func (d *Driver) Step(typing bool, elapsed float64) Frame {
	dx, dy := RotationIncrement(typing)
	scale := Scale(typing, elapsed)

	f := Frame{
		Elapsed:         elapsed,
		Typing:          typing,
		Objects:         make([]ObjectFrame, len(d.objects)),
		Particles:       Particles(typing, elapsed),
		Lights:          SceneLights(typing),
		AutoRotateSpeed: AutoRotateSpeed(typing),
	}
	for i, o := range d.objects {
		d.rotations[i].X += dx
		d.rotations[i].Y += dy
		color, emissive := Tint(o.Color, typing)
		f.Objects[i] = ObjectFrame{
			Shape:    o.Shape,
			Rotation: d.rotations[i],
			Position: Vec3{X: o.Position.X, Y: o.Position.Y + FloatOffset(elapsed, o.Position.X), Z: o.Position.Z},
			Scale:    scale,
			Color:    color,
			Emissive: emissive,
		}
	}
	return f
}
