package viz

import (
	"math"

	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/nova"
)

// Camera maps world coordinates onto canvas sub-pixels. Y grows upward in
// the world and downward on the canvas.
type Camera struct {
	Center nova.Vec2
	// Scale is sub-pixels per world unit.
	Scale float64
}

func (cam Camera) Project(c *Canvas, p nova.Vec2) (int, int) {
	w, h := c.PixelSize()
	x := float64(w)/2 + (p.X-cam.Center.X)*cam.Scale
	y := float64(h)/2 - (p.Y-cam.Center.Y)*cam.Scale
	return int(math.Round(x)), int(math.Round(y))
}

// Fit returns a camera showing box on c with a small margin.
func Fit(c *Canvas, box nova.AABB) Camera {
	w, h := c.PixelSize()
	bw, bh := math.Max(box.Width(), 1e-3), math.Max(box.Height(), 1e-3)
	scale := 0.9 * math.Min(float64(w)/bw, float64(h)/bh)
	return Camera{Center: box.Center(), Scale: scale}
}

// Bounds is the union of every body AABB in w.
func Bounds(w *scene.World) (nova.AABB, bool) {
	var box nova.AABB
	found := false
	for _, b := range w.Bodies() {
		bb, err := b.AABB()
		if err != nil {
			continue
		}
		if !found {
			box, found = bb, true
			continue
		}
		box = box.Union(bb)
	}
	return box, found
}

// DrawBody outlines every shape of b at its current transform.
func DrawBody(c *Canvas, cam Camera, b *nova.RigidBody) error {
	pos, err := b.Position()
	if err != nil {
		return err
	}
	angle, err := b.Angle()
	if err != nil {
		return err
	}
	toWorld := func(local nova.Vec2) nova.Vec2 { return local.Rotate(angle).Add(pos) }

	for s := range b.Shapes() {
		kind, err := s.Kind()
		if err != nil {
			return err
		}
		switch kind {
		case nova.Circle:
			cx, cy := cam.Project(c, toWorld(s.Center()))
			r := int(math.Round(s.Radius() * cam.Scale))
			c.DrawCircle(cx, cy, r)
			// spoke shows rotation
			ex, ey := cam.Project(c, toWorld(s.Center().Add(nova.V(s.Radius(), 0))))
			c.DrawLine(cx, cy, ex, ey)
		case nova.Polygon:
			vs := s.Vertices()
			for i := range vs {
				x0, y0 := cam.Project(c, toWorld(vs[i]))
				x1, y1 := cam.Project(c, toWorld(vs[(i+1)%len(vs)]))
				c.DrawLine(x0, y0, x1, y1)
			}
		}
	}
	return nil
}

// DrawWorld draws every body and every constraint as a line between its
// endpoints.
func DrawWorld(c *Canvas, cam Camera, w *scene.World) error {
	for _, b := range w.Bodies() {
		if err := DrawBody(c, cam, b); err != nil {
			return err
		}
	}
	for _, con := range w.Constraints {
		a, b := con.Bodies()
		pa, pb, ok := endpoints(con, a, b)
		if !ok {
			continue
		}
		x0, y0 := cam.Project(c, pa)
		x1, y1 := cam.Project(c, pb)
		c.DrawLine(x0, y0, x1, y1)
	}
	return nil
}

func endpoints(con nova.Constraint, a, b *nova.RigidBody) (nova.Vec2, nova.Vec2, bool) {
	var anchor nova.Vec2
	switch c := con.(type) {
	case *nova.DistanceConstraint:
		anchor, _ = c.Anchors()
	case *nova.HingeConstraint:
		anchor = c.Anchor()
	}
	pos := func(body *nova.RigidBody) (nova.Vec2, bool) {
		if body == nil {
			return anchor, true
		}
		p, err := body.Position()
		return p, err == nil
	}
	pa, okA := pos(a)
	pb, okB := pos(b)
	return pa, pb, okA && okB
}

// DrawRay draws a cast segment and marks each hit point.
func DrawRay(c *Canvas, cam Camera, from, to nova.Vec2, hits []nova.RayCastResult) {
	x0, y0 := cam.Project(c, from)
	x1, y1 := cam.Project(c, to)
	c.DrawLine(x0, y0, x1, y1)
	for _, h := range hits {
		hx, hy := cam.Project(c, h.Position)
		c.DrawCircle(hx, hy, 2)
	}
}
