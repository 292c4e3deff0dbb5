package domain

import "time"

// Node is one serialized scene object. Optional sub-records are pointers so
// that an object without the matching capability omits the field entirely
// instead of carrying zero values.
type Node struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       string            `json:"type"`
	Category   string            `json:"category,omitempty"`
	Visible    bool              `json:"visible"`
	Geometry   *Geometry         `json:"geometry,omitempty"`
	Style      *Style            `json:"style,omitempty"`
	Text       string            `json:"text,omitempty"`
	PluginData map[string]string `json:"pluginData,omitempty"`
	SVG        string            `json:"svg,omitempty"`
	Comments   []Comment         `json:"comments,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// Geometry holds placement in the parent's coordinate space, rounded to the
// nearest integer pixel. ParentWidth/ParentHeight are captured at
// serialization time so layout math never needs the live tree again.
type Geometry struct {
	X            int `json:"x"`
	Y            int `json:"y"`
	Width        int `json:"width"`
	Height       int `json:"height"`
	Rotation     int `json:"rotation,omitempty"`
	ParentWidth  int `json:"parentWidth,omitempty"`
	ParentHeight int `json:"parentHeight,omitempty"`
}

// Style carries the paint attributes worth showing. Opacity is recorded only
// when the object is not fully opaque.
type Style struct {
	Background   string  `json:"background,omitempty"`
	CornerRadius int     `json:"cornerRadius,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
}

// Comment is one remote comment attached to a node by identifier equality.
type Comment struct {
	ID         string     `json:"id"`
	Message    string     `json:"message"`
	User       string     `json:"user"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Clone deep-copies the node so augmentation can enrich a tree that has
// already been handed to display surfaces.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Geometry != nil {
		geo := *n.Geometry
		out.Geometry = &geo
	}
	if n.Style != nil {
		st := *n.Style
		out.Style = &st
	}
	if n.PluginData != nil {
		out.PluginData = make(map[string]string, len(n.PluginData))
		for k, v := range n.PluginData {
			out.PluginData[k] = v
		}
	}
	if n.Comments != nil {
		out.Comments = append([]Comment(nil), n.Comments...)
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// CloneNodes deep-copies a whole selection.
func CloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits n and every descendant in document order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// CollectIDs returns the ids of every node in the given trees, in document order.
func CollectIDs(nodes []*Node) []string {
	var ids []string
	for _, n := range nodes {
		n.Walk(func(m *Node) { ids = append(ids, m.ID) })
	}
	return ids
}
