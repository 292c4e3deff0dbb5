package domain

// SceneObject is the minimal surface every host object exposes. Everything
// else is a capability: the serializer type-asserts each one and copies only
// what the object actually implements. A capability method may additionally
// return nil when the underlying object lacks the property, so sources that
// decode heterogeneous dumps can share one concrete type.
type SceneObject interface {
	ID() string
	Name() string
	Kind() string
	Visible() bool
}

// Frame is unrounded placement in the parent's coordinate space.
type Frame struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
}

// GeometrySource is implemented by objects that expose placement.
type GeometrySource interface {
	Frame() *Frame
}

// Paint is the style surface of an object. Background is a CSS color string
// ("#rrggbb" or "rgba(...)"), empty when no visible solid fill exists.
// Opacity is 1 for fully opaque objects.
type Paint struct {
	Background   string
	CornerRadius float64
	Opacity      float64
}

// PaintSource is implemented by objects that expose fills or opacity.
type PaintSource interface {
	Paint() *Paint
}

// TextSource is implemented by objects that carry text content.
type TextSource interface {
	Characters() string
}

// Container is implemented by objects with ordered children.
type Container interface {
	Children() []SceneObject
}

// PluginDataSource is implemented by objects carrying plugin-scoped metadata.
type PluginDataSource interface {
	PluginData() map[string]string
}
