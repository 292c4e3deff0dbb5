// Package serialize turns live host scene objects into plain node records.
// The walk is pure: it never mutates the host tree and never synthesizes
// properties beyond rounding and the category tag of markup mode.
package serialize

import (
	"math"

	"figlens/internal/domain"
)

// Serializer copies the capability allowlist of each object into a Node.
// Properties an object does not expose are simply absent from the record.
type Serializer struct {
	rules *Rules
}

type Option func(*Serializer)

// WithCategories enables markup-mode category inference using the given
// rules. Pass DefaultRules() for the built-in keyword list.
func WithCategories(r *Rules) Option {
	return func(s *Serializer) { s.rules = r }
}

func New(opts ...Option) *Serializer {
	s := &Serializer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize converts one root object and its descendants, preserving child
// order. The result is nil only for a nil object.
func (s *Serializer) Serialize(obj domain.SceneObject) *domain.Node {
	if obj == nil {
		return nil
	}
	return s.walk(obj, nil)
}

// SerializeAll converts a whole selection. An empty selection stays nil so
// the update payload marshals as null, not [].
func (s *Serializer) SerializeAll(objs []domain.SceneObject) []*domain.Node {
	if len(objs) == 0 {
		return nil
	}
	nodes := make([]*domain.Node, 0, len(objs))
	for _, obj := range objs {
		if n := s.Serialize(obj); n != nil {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}

func (s *Serializer) walk(obj domain.SceneObject, parent *domain.Frame) *domain.Node {
	n := &domain.Node{
		ID:      obj.ID(),
		Name:    obj.Name(),
		Kind:    obj.Kind(),
		Visible: obj.Visible(),
	}

	var frame *domain.Frame
	if g, ok := obj.(domain.GeometrySource); ok {
		if f := g.Frame(); f != nil {
			frame = f
			geo := &domain.Geometry{
				X:        round(f.X),
				Y:        round(f.Y),
				Width:    round(f.Width),
				Height:   round(f.Height),
				Rotation: round(f.Rotation),
			}
			if parent != nil {
				geo.ParentWidth = round(parent.Width)
				geo.ParentHeight = round(parent.Height)
			}
			n.Geometry = geo
		}
	}

	if p, ok := obj.(domain.PaintSource); ok {
		if pt := p.Paint(); pt != nil {
			st := &domain.Style{Background: pt.Background}
			if pt.CornerRadius > 0 {
				st.CornerRadius = round(pt.CornerRadius)
			}
			if pt.Opacity < 1 {
				st.Opacity = pt.Opacity
			}
			// An all-default paint surface is not style-worthy.
			if st.Background != "" || st.CornerRadius != 0 || st.Opacity != 0 {
				n.Style = st
			}
		}
	}

	if t, ok := obj.(domain.TextSource); ok {
		n.Text = t.Characters()
	}

	if d, ok := obj.(domain.PluginDataSource); ok {
		if pd := d.PluginData(); len(pd) > 0 {
			n.PluginData = pd
		}
	}

	if s.rules != nil {
		n.Category = s.rules.Categorize(obj.Name(), obj.Kind())
	}

	if c, ok := obj.(domain.Container); ok {
		for _, kid := range c.Children() {
			if kid == nil {
				continue
			}
			n.Children = append(n.Children, s.walk(kid, frame))
		}
	}

	return n
}

func round(v float64) int {
	return int(math.Round(v))
}
