package figma

import (
	"testing"

	"figlens/internal/domain"
)

func parseOne(t *testing.T, raw string) domain.SceneObject {
	t.Helper()
	objs, err := ParseNodes([]byte(raw))
	if err != nil {
		t.Fatalf("ParseNodes: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objs))
	}
	return objs[0]
}

// --- ParseNodes ---

func TestParseNodes_EmptyAndNull(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "[]"} {
		objs, err := ParseNodes([]byte(raw))
		if err != nil {
			t.Fatalf("input %q: %v", raw, err)
		}
		if objs != nil {
			t.Fatalf("input %q: expected nil, got %+v", raw, objs)
		}
	}
}

func TestParseNodes_SingleObject(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","name":"Box","type":"RECTANGLE"}`)
	if obj.ID() != "1:1" || obj.Name() != "Box" || obj.Kind() != "RECTANGLE" {
		t.Fatalf("identity wrong: %s %s %s", obj.ID(), obj.Name(), obj.Kind())
	}
}

func TestParseNodes_ArrayPreservesOrder(t *testing.T) {
	objs, err := ParseNodes([]byte(`[{"id":"a"},null,{"id":"b"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 2 {
		t.Fatalf("expected 2 objects (null skipped), got %d", len(objs))
	}
	if objs[0].ID() != "a" || objs[1].ID() != "b" {
		t.Fatalf("order wrong: %s, %s", objs[0].ID(), objs[1].ID())
	}
}

func TestParseNodes_BadJSON(t *testing.T) {
	if _, err := ParseNodes([]byte(`{"id":`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseNodes([]byte(`[{"id"`)); err == nil {
		t.Fatal("expected decode error")
	}
}

// --- Visibility ---

func TestObject_VisibleDefaultsTrue(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1"}`)
	if !obj.Visible() {
		t.Fatal("omitted visible key must read as true")
	}

	hidden := parseOne(t, `{"id":"1:2","visible":false}`)
	if hidden.Visible() {
		t.Fatal("explicit visible:false ignored")
	}
}

// --- Frame ---

func TestObject_FrameAbsentWithoutGeometryKeys(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","name":"Group","type":"GROUP"}`)
	g, ok := obj.(domain.GeometrySource)
	if !ok {
		t.Fatal("object must implement GeometrySource")
	}
	if g.Frame() != nil {
		t.Fatalf("expected nil frame, got %+v", g.Frame())
	}
}

func TestObject_FramePartialKeys(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","x":10.5}`)
	f := obj.(domain.GeometrySource).Frame()
	if f == nil {
		t.Fatal("any geometry key should produce a frame")
	}
	if f.X != 10.5 || f.Y != 0 || f.Width != 0 || f.Height != 0 {
		t.Fatalf("partial frame wrong: %+v", f)
	}
}

func TestObject_FrameFull(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","x":1,"y":2,"width":3,"height":4,"rotation":5}`)
	f := obj.(domain.GeometrySource).Frame()
	if f.X != 1 || f.Y != 2 || f.Width != 3 || f.Height != 4 || f.Rotation != 5 {
		t.Fatalf("frame wrong: %+v", f)
	}
}

// --- Paint ---

func TestObject_PaintAbsentWithoutPaintKeys(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","x":10}`)
	p, ok := obj.(domain.PaintSource)
	if !ok {
		t.Fatal("object must implement PaintSource")
	}
	if p.Paint() != nil {
		t.Fatalf("expected nil paint, got %+v", p.Paint())
	}
}

func TestObject_PaintDefaultsOpacityToOne(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","cornerRadius":8}`)
	p := obj.(domain.PaintSource).Paint()
	if p == nil {
		t.Fatal("expected paint")
	}
	if p.Opacity != 1 {
		t.Fatalf("expected default opacity 1, got %v", p.Opacity)
	}
	if p.CornerRadius != 8 {
		t.Fatalf("expected corner radius 8, got %v", p.CornerRadius)
	}
}

func TestObject_BackgroundOpaqueSolid(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","fills":[{"type":"SOLID","color":{"r":1,"g":0,"b":0}}]}`)
	p := obj.(domain.PaintSource).Paint()
	if p.Background != "#ff0000" {
		t.Fatalf("expected #ff0000, got %q", p.Background)
	}
}

func TestObject_BackgroundTranslucentSolid(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","fills":[{"type":"SOLID","opacity":0.5,"color":{"r":1,"g":0,"b":0}}]}`)
	p := obj.(domain.PaintSource).Paint()
	if p.Background != "rgba(255, 0, 0, 0.50)" {
		t.Fatalf("expected rgba(255, 0, 0, 0.50), got %q", p.Background)
	}
}

func TestObject_BackgroundSkipsNonSolidAndInvisible(t *testing.T) {
	raw := `{"id":"1:1","fills":[
		{"type":"IMAGE","color":{"r":1,"g":1,"b":1}},
		{"type":"SOLID","visible":false,"color":{"r":1,"g":0,"b":0}},
		{"type":"SOLID","color":{"r":0,"g":0,"b":1}}
	]}`
	obj := parseOne(t, raw)
	p := obj.(domain.PaintSource).Paint()
	if p.Background != "#0000ff" {
		t.Fatalf("expected first usable fill #0000ff, got %q", p.Background)
	}
}

func TestObject_BackgroundEmptyWithoutSolidFill(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","fills":[{"type":"GRADIENT_LINEAR"}]}`)
	p := obj.(domain.PaintSource).Paint()
	if p.Background != "" {
		t.Fatalf("expected empty background, got %q", p.Background)
	}
}

func TestChannel_Clamps(t *testing.T) {
	if got := channel(2.0); got != 255 {
		t.Fatalf("expected 255, got %d", got)
	}
	if got := channel(-0.5); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := channel(0.5); got != 128 {
		t.Fatalf("expected 128, got %d", got)
	}
}

// --- Text, plugin data, children ---

func TestObject_Characters(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","type":"TEXT","characters":"Hello"}`)
	txt, ok := obj.(domain.TextSource)
	if !ok {
		t.Fatal("object must implement TextSource")
	}
	if txt.Characters() != "Hello" {
		t.Fatalf("expected Hello, got %q", txt.Characters())
	}
}

func TestObject_PluginData(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1","pluginData":{"role":"hero"}}`)
	pd := obj.(domain.PluginDataSource).PluginData()
	if pd["role"] != "hero" {
		t.Fatalf("expected plugin data, got %+v", pd)
	}
}

func TestObject_ChildrenNested(t *testing.T) {
	raw := `{"id":"1:0","type":"FRAME","children":[
		{"id":"1:1","type":"TEXT"},
		null,
		{"id":"1:2","type":"RECTANGLE","children":[{"id":"1:3"}]}
	]}`
	obj := parseOne(t, raw)
	c, ok := obj.(domain.Container)
	if !ok {
		t.Fatal("object must implement Container")
	}
	kids := c.Children()
	if len(kids) != 2 {
		t.Fatalf("expected 2 children (null skipped), got %d", len(kids))
	}
	if kids[0].ID() != "1:1" || kids[1].ID() != "1:2" {
		t.Fatalf("child order wrong: %s, %s", kids[0].ID(), kids[1].ID())
	}
	grand := kids[1].(domain.Container).Children()
	if len(grand) != 1 || grand[0].ID() != "1:3" {
		t.Fatalf("grandchildren wrong: %+v", grand)
	}
}

func TestObject_NoChildrenIsNil(t *testing.T) {
	obj := parseOne(t, `{"id":"1:1"}`)
	if kids := obj.(domain.Container).Children(); kids != nil {
		t.Fatalf("expected nil children, got %+v", kids)
	}
}
