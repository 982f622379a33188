package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/novabind/native"
)

// Presets builds a fresh scene for each name.
var Presets = map[string]func() *Scene{
	"pyramid":  pyramid,
	"pendulum": pendulum,
	"rain":     rain,
	"ray":      ray,
}

func GetPreset(name string) *Scene {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ground(width float64) BodyConfig {
	return BodyConfig{
		Name:     "ground",
		Kind:     "static",
		Position: native.V(0, -0.5),
		Friction: 0.8,
		Shapes:   []ShapeConfig{{Type: "box", Width: width, Height: 1}},
	}
}

func pyramid() *Scene {
	sc := DefaultScene()
	sc.Name = "pyramid"
	sc.Duration = 4
	sc.Bodies = append(sc.Bodies, ground(40))
	const rows = 8
	for row := 0; row < rows; row++ {
		for col := 0; col < rows-row; col++ {
			x := float64(col) - float64(rows-row-1)/2
			y := 0.5 + float64(row)
			sc.Bodies = append(sc.Bodies, BodyConfig{
				Name:     fmt.Sprintf("box_%d_%d", row, col),
				Kind:     "dynamic",
				Position: native.V(x*1.05, y),
				Friction: 0.6,
				Shapes:   []ShapeConfig{{Type: "box", Width: 1, Height: 1}},
			})
		}
	}
	return sc
}

func pendulum() *Scene {
	sc := DefaultScene()
	sc.Name = "pendulum"
	sc.Duration = 10
	sc.Broadphase = "brute_force"
	prev := ""
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("bob_%d", i)
		sc.Bodies = append(sc.Bodies, BodyConfig{
			Name:     name,
			Kind:     "dynamic",
			Position: native.V(float64(i+1)*1.5, 4),
			Shapes:   []ShapeConfig{{Type: "circle", Radius: 0.2}},
		})
		c := ConstraintConfig{Type: "distance", B: name, Length: 1.5}
		if prev == "" {
			c.AnchorA = native.V(0, 4)
		} else {
			c.A = prev
		}
		sc.Constraints = append(sc.Constraints, c)
		prev = name
	}
	return sc
}

func rain() *Scene {
	sc := DefaultScene()
	sc.Name = "rain"
	sc.Duration = 6
	sc.Broadphase = "spatial_hash"
	sc.Bodies = append(sc.Bodies, ground(30))
	for i := 0; i < 40; i++ {
		shape := ShapeConfig{Type: "circle", Radius: 0.3}
		if i%3 == 1 {
			shape = ShapeConfig{Type: "ngon", Sides: 5, Radius: 0.35}
		}
		sc.Bodies = append(sc.Bodies, BodyConfig{
			Name:        fmt.Sprintf("drop_%02d", i),
			Kind:        "dynamic",
			Position:    native.V(float64(i%10)*1.2-5.4, 5+float64(i/10)*1.5),
			Restitution: 0.4,
			Shapes:      []ShapeConfig{shape},
		})
	}
	return sc
}

func ray() *Scene {
	sc := DefaultScene()
	sc.Name = "ray"
	sc.Duration = 1
	sc.Gravity = native.Vec2{}
	sc.Bodies = []BodyConfig{
		{Name: "near", Kind: "static", Position: native.V(5, 0), Shapes: []ShapeConfig{{Type: "circle", Radius: 1}}},
		{Name: "far", Kind: "static", Position: native.V(9, 0), Shapes: []ShapeConfig{{Type: "box", Width: 1, Height: 2}}},
	}
	sc.Ray = &RayConfig{From: native.V(0, 0), To: native.V(12, 0)}
	return sc
}
