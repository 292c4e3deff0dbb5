package figma

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"figlens/internal/domain"
)

// wireNode mirrors the plugin's raw dump of one scene object. Optional
// properties are pointers so an absent key and a zero value stay distinct.
type wireNode struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Visible      *bool             `json:"visible"`
	X            *float64          `json:"x"`
	Y            *float64          `json:"y"`
	Width        *float64          `json:"width"`
	Height       *float64          `json:"height"`
	Rotation     *float64          `json:"rotation"`
	Opacity      *float64          `json:"opacity"`
	CornerRadius *float64          `json:"cornerRadius"`
	Fills        []wirePaint       `json:"fills"`
	Characters   string            `json:"characters"`
	PluginData   map[string]string `json:"pluginData"`
	Children     []*wireNode       `json:"children"`
}

type wirePaint struct {
	Type    string    `json:"type"`
	Visible *bool     `json:"visible"`
	Opacity *float64  `json:"opacity"`
	Color   wireColor `json:"color"`
}

// wireColor uses the host's 0..1 channel range.
type wireColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// ParseNodes decodes a raw selection dump into scene objects. The payload is
// either an array of root objects or a single object.
func ParseNodes(data []byte) ([]domain.SceneObject, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var raws []*wireNode
	if trimmed[0] == '{' {
		var one wireNode
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode node: %w", err)
		}
		raws = []*wireNode{&one}
	} else {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decode nodes: %w", err)
		}
	}

	objs := make([]domain.SceneObject, 0, len(raws))
	for _, w := range raws {
		if w == nil {
			continue
		}
		objs = append(objs, object{w})
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return objs, nil
}

// object adapts one decoded wireNode to the domain capability surface.
type object struct {
	w *wireNode
}

func (o object) ID() string   { return o.w.ID }
func (o object) Name() string { return o.w.Name }
func (o object) Kind() string { return o.w.Type }

// Visible defaults to true when the dump omits the key, matching the host.
func (o object) Visible() bool { return o.w.Visible == nil || *o.w.Visible }

func (o object) Frame() *domain.Frame {
	if o.w.X == nil && o.w.Y == nil && o.w.Width == nil && o.w.Height == nil {
		return nil
	}
	return &domain.Frame{
		X:        deref(o.w.X),
		Y:        deref(o.w.Y),
		Width:    deref(o.w.Width),
		Height:   deref(o.w.Height),
		Rotation: deref(o.w.Rotation),
	}
}

func (o object) Paint() *domain.Paint {
	if o.w.Fills == nil && o.w.CornerRadius == nil && o.w.Opacity == nil {
		return nil
	}
	p := &domain.Paint{Opacity: 1}
	if o.w.Opacity != nil {
		p.Opacity = *o.w.Opacity
	}
	if o.w.CornerRadius != nil {
		p.CornerRadius = *o.w.CornerRadius
	}
	p.Background = backgroundColor(o.w.Fills)
	return p
}

func (o object) Characters() string { return o.w.Characters }

func (o object) PluginData() map[string]string { return o.w.PluginData }

func (o object) Children() []domain.SceneObject {
	if len(o.w.Children) == 0 {
		return nil
	}
	kids := make([]domain.SceneObject, 0, len(o.w.Children))
	for _, c := range o.w.Children {
		if c == nil {
			continue
		}
		kids = append(kids, object{c})
	}
	return kids
}

// backgroundColor formats the first visible solid fill as a CSS color:
// "#rrggbb" when fully opaque, "rgba(r, g, b, a)" otherwise.
func backgroundColor(fills []wirePaint) string {
	for _, f := range fills {
		if f.Type != "SOLID" {
			continue
		}
		if f.Visible != nil && !*f.Visible {
			continue
		}
		r := channel(f.Color.R)
		g := channel(f.Color.G)
		b := channel(f.Color.B)
		alpha := 1.0
		if f.Opacity != nil {
			alpha = *f.Opacity
		}
		if alpha >= 1 {
			return fmt.Sprintf("#%02x%02x%02x", r, g, b)
		}
		return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", r, g, b, alpha)
	}
	return ""
}

func channel(v float64) int {
	c := int(math.Round(v * 255))
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return c
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
