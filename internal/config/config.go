package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/novabind/native"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 1.0 / 60
	DefaultDuration   = 5.0
	DefaultIterations = 10
	DefaultSubsteps   = 1
	DefaultBroadphase = "bvh"
)

// Scene is a complete world description: space settings, bodies and the
// constraints between them.
type Scene struct {
	Name        string             `yaml:"name"`
	Dt          float64            `yaml:"dt"`
	Duration    float64            `yaml:"duration"`
	Gravity     native.Vec2        `yaml:"gravity"`
	Iterations  int                `yaml:"iterations"`
	Substeps    int                `yaml:"substeps"`
	Damping     float64            `yaml:"damping"`
	Broadphase  string             `yaml:"broadphase"`
	Bodies      []BodyConfig       `yaml:"bodies"`
	Constraints []ConstraintConfig `yaml:"constraints,omitempty"`
	Ray         *RayConfig         `yaml:"ray,omitempty"`
}

type BodyConfig struct {
	Name            string        `yaml:"name"`
	Kind            string        `yaml:"kind"`
	Position        native.Vec2   `yaml:"position"`
	Angle           float64       `yaml:"angle,omitempty"`
	Velocity        native.Vec2   `yaml:"velocity,omitempty"`
	AngularVelocity float64       `yaml:"angular_velocity,omitempty"`
	Density         float64       `yaml:"density,omitempty"`
	Restitution     float64       `yaml:"restitution,omitempty"`
	Friction        float64       `yaml:"friction,omitempty"`
	Shapes          []ShapeConfig `yaml:"shapes"`
}

type ShapeConfig struct {
	Type     string        `yaml:"type"`
	Radius   float64       `yaml:"radius,omitempty"`
	Width    float64       `yaml:"width,omitempty"`
	Height   float64       `yaml:"height,omitempty"`
	Sides    int           `yaml:"sides,omitempty"`
	Offset   native.Vec2   `yaml:"offset,omitempty"`
	Vertices []native.Vec2 `yaml:"vertices,omitempty"`
}

// ConstraintConfig joins the bodies named A and B; an empty name anchors that
// end to the world.
type ConstraintConfig struct {
	Type         string      `yaml:"type"`
	A            string      `yaml:"a,omitempty"`
	B            string      `yaml:"b,omitempty"`
	Length       float64     `yaml:"length,omitempty"`
	AnchorA      native.Vec2 `yaml:"anchor_a,omitempty"`
	AnchorB      native.Vec2 `yaml:"anchor_b,omitempty"`
	Anchor       native.Vec2 `yaml:"anchor,omitempty"`
	Spring       bool        `yaml:"spring,omitempty"`
	Hertz        float64     `yaml:"hertz,omitempty"`
	DampingRatio float64     `yaml:"damping_ratio,omitempty"`
	EnableLimits bool        `yaml:"enable_limits,omitempty"`
	Lower        float64     `yaml:"lower,omitempty"`
	Upper        float64     `yaml:"upper,omitempty"`
}

type RayConfig struct {
	From native.Vec2 `yaml:"from"`
	To   native.Vec2 `yaml:"to"`
}

func DefaultScene() *Scene {
	set := native.DefaultSettings()
	return &Scene{
		Name:       "empty",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Gravity:    set.Gravity,
		Iterations: DefaultIterations,
		Substeps:   DefaultSubsteps,
		Damping:    set.Damping,
		Broadphase: DefaultBroadphase,
	}
}

func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a scene over the defaults and validates it.
func Parse(data []byte) (*Scene, error) {
	sc := DefaultScene()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func Save(path string, sc *Scene) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Settings converts the scene parameters to space settings.
func (s *Scene) Settings() native.Settings {
	set := native.DefaultSettings()
	set.Gravity = s.Gravity
	set.Iterations = s.Iterations
	set.Substeps = s.Substeps
	set.Damping = s.Damping
	return set
}

func (s *Scene) Steps() int {
	return int(s.Duration/s.Dt + 0.5)
}

func (s *Scene) Validate() error {
	var errs []error
	if s.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", s.Dt))
	}
	if s.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %g", s.Duration))
	}
	if _, err := native.ParseBroadphase(s.Broadphase); err != nil {
		errs = append(errs, err)
	}
	if err := s.Settings().Validate(); err != nil {
		errs = append(errs, err)
	}

	names := make(map[string]bool, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("body %d: name is required", i))
		} else if names[b.Name] {
			errs = append(errs, fmt.Errorf("body %q: duplicate name", b.Name))
		}
		names[b.Name] = true
		if _, err := native.ParseBodyKind(b.Kind); err != nil {
			errs = append(errs, fmt.Errorf("body %q: %w", b.Name, err))
		}
		for j, sh := range b.Shapes {
			if _, err := sh.Def(); err != nil {
				errs = append(errs, fmt.Errorf("body %q shape %d: %w", b.Name, j, err))
			}
		}
	}

	for i, c := range s.Constraints {
		if c.Type != "distance" && c.Type != "hinge" {
			errs = append(errs, fmt.Errorf("constraint %d: unknown type %q", i, c.Type))
		}
		if c.A == "" && c.B == "" {
			errs = append(errs, fmt.Errorf("constraint %d: needs at least one body", i))
		}
		for _, name := range []string{c.A, c.B} {
			if name != "" && !names[name] {
				errs = append(errs, fmt.Errorf("constraint %d: unknown body %q", i, name))
			}
		}
	}
	return errors.Join(errs...)
}

// Material fills unset material fields from native.DefaultMaterial.
func (b BodyConfig) Material() native.Material {
	m := native.DefaultMaterial
	if b.Density > 0 {
		m.Density = b.Density
	}
	if b.Restitution > 0 {
		m.Restitution = b.Restitution
	}
	if b.Friction > 0 {
		m.Friction = b.Friction
	}
	return m
}

func (b BodyConfig) Init() (native.BodyInit, error) {
	kind, err := native.ParseBodyKind(b.Kind)
	if err != nil {
		return native.BodyInit{}, err
	}
	return native.BodyInit{
		Kind:            kind,
		Position:        b.Position,
		Angle:           b.Angle,
		LinearVelocity:  b.Velocity,
		AngularVelocity: b.AngularVelocity,
		Material:        b.Material(),
	}, nil
}

func (s ShapeConfig) Def() (native.ShapeDef, error) {
	var def native.ShapeDef
	switch s.Type {
	case "circle":
		def = native.CircleDef(s.Radius, s.Offset)
	case "box", "rect":
		if s.Width <= 0 || s.Height <= 0 {
			return def, fmt.Errorf("box needs positive width and height")
		}
		def = native.RectDef(s.Width, s.Height, s.Offset)
	case "ngon":
		def = native.NGonDef(s.Sides, s.Radius, s.Offset)
	case "polygon":
		def = native.PolygonDef(s.Vertices, s.Offset)
	default:
		return def, fmt.Errorf("unknown shape type %q", s.Type)
	}
	return def, def.Validate()
}
