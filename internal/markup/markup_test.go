package markup

import (
	"strings"
	"testing"

	"figlens/internal/domain"
)

func frameNode(id, name string, w, h int) *domain.Node {
	return &domain.Node{
		ID: id, Name: name, Kind: "FRAME", Visible: true,
		Geometry: &domain.Geometry{Width: w, Height: h},
	}
}

// --- Root positioning ---

func TestGenerate_RootUsesPixelSizing(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	out := g.Generate([]*domain.Node{frameNode("1:0", "Screen", 375, 812)})
	if !strings.Contains(out, `style="position: relative; width: 375px; height: 812px;"`) {
		t.Fatalf("root style wrong:\n%s", out)
	}
}

func TestGenerate_RootWithoutGeometry(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	out := g.Generate([]*domain.Node{{ID: "1:0", Name: "Ghost", Kind: "GROUP", Visible: true}})
	if !strings.Contains(out, `style="position: relative;"`) {
		t.Fatalf("expected bare relative root:\n%s", out)
	}
	if strings.Contains(out, "px") {
		t.Fatalf("geometry-less root must not emit pixel sizes:\n%s", out)
	}
}

// --- Child positioning ---

func TestGenerate_ChildPercentages(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := frameNode("1:0", "Screen", 200, 100)
	root.Children = []*domain.Node{{
		ID: "1:1", Name: "Box", Kind: "RECTANGLE", Visible: true,
		Geometry: &domain.Geometry{X: 10, Y: 10, Width: 100, Height: 20, ParentWidth: 200, ParentHeight: 100},
	}}
	out := g.Generate([]*domain.Node{root})
	want := `style="position: absolute; left: 5.00%; top: 10.00%; width: 50.00%; height: 20.00%;"`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %s in:\n%s", want, out)
	}
}

func TestGenerate_NearCenteredChildSnapsToCenter(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := frameNode("1:0", "Screen", 200, 100)
	// Child center is 101, parent center 100: within the 5px tolerance.
	root.Children = []*domain.Node{{
		ID: "1:1", Name: "CTA", Kind: "RECTANGLE", Visible: true,
		Geometry: &domain.Geometry{X: 81, Y: 10, Width: 40, Height: 20, ParentWidth: 200, ParentHeight: 100},
	}}
	out := g.Generate([]*domain.Node{root})
	if !strings.Contains(out, "left: 50%; transform: translateX(-50%); top: 10.00%") {
		t.Fatalf("expected centering styles in:\n%s", out)
	}
	if strings.Contains(out, "left: 40.50%") {
		t.Fatalf("centered child must not keep its raw left offset:\n%s", out)
	}
}

func TestGenerate_OffCenterChildKeepsOffset(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := frameNode("1:0", "Screen", 200, 100)
	// Child center is 106, six pixels off: outside the tolerance.
	root.Children = []*domain.Node{{
		ID: "1:1", Name: "CTA", Kind: "RECTANGLE", Visible: true,
		Geometry: &domain.Geometry{X: 86, Y: 10, Width: 40, Height: 20, ParentWidth: 200, ParentHeight: 100},
	}}
	out := g.Generate([]*domain.Node{root})
	if !strings.Contains(out, "left: 43.00%") {
		t.Fatalf("expected raw percentage offset in:\n%s", out)
	}
	if strings.Contains(out, "translateX") {
		t.Fatalf("off-center child must not be snapped:\n%s", out)
	}
}

func TestGenerate_ZeroParentDimsSkipPositioning(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := &domain.Node{ID: "1:0", Name: "Group", Kind: "GROUP", Visible: true}
	root.Children = []*domain.Node{{
		ID: "1:1", Name: "Box", Kind: "RECTANGLE", Visible: true,
		Geometry: &domain.Geometry{X: 10, Y: 10, Width: 40, Height: 20},
		Style:    &domain.Style{Background: "#333333"},
	}}
	out := g.Generate([]*domain.Node{root})
	if strings.Contains(out, "position: absolute") || strings.Contains(out, "left:") {
		t.Fatalf("child without parent dims must not be positioned:\n%s", out)
	}
	if !strings.Contains(out, "background-color: #333333") {
		t.Fatalf("visual styles should still pass through:\n%s", out)
	}
}

// --- Tags, classes, text ---

func TestGenerate_TagByCategory(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	cases := []struct {
		category, wantTag string
	}{
		{"button", "button"},
		{"text", "span"},
		{"card", "div"},
		{"", "div"},
	}
	for _, tc := range cases {
		out := g.Generate([]*domain.Node{{ID: "1:0", Name: "x", Kind: "FRAME", Visible: true, Category: tc.category}})
		if !strings.HasPrefix(out, "<"+tc.wantTag) {
			t.Fatalf("category %q: expected tag %s, got:\n%s", tc.category, tc.wantTag, out)
		}
		if !strings.Contains(out, "</"+tc.wantTag+">") {
			t.Fatalf("category %q: missing closing tag:\n%s", tc.category, out)
		}
	}
}

func TestGenerate_ClassFromName(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	out := g.Generate([]*domain.Node{{ID: "1:0", Name: "My Button!! 2", Kind: "FRAME", Visible: true}})
	if !strings.Contains(out, `class="My-Button-2"`) {
		t.Fatalf("expected sanitized class in:\n%s", out)
	}

	out = g.Generate([]*domain.Node{{ID: "1:0", Name: "!!!", Kind: "FRAME", Visible: true}})
	if strings.Contains(out, "class=") {
		t.Fatalf("unusable name must not produce a class attribute:\n%s", out)
	}
}

func TestGenerate_TextEscaped(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	out := g.Generate([]*domain.Node{{
		ID: "1:0", Name: "Label", Kind: "TEXT", Visible: true, Category: "text",
		Text: `<b>5 & 6</b>`,
	}})
	if !strings.Contains(out, "&lt;b&gt;5 &amp; 6&lt;/b&gt;") {
		t.Fatalf("expected escaped text in:\n%s", out)
	}
	if strings.Contains(out, "<b>") {
		t.Fatalf("raw markup leaked through:\n%s", out)
	}
}

func TestGenerate_StylePassThrough(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	out := g.Generate([]*domain.Node{{
		ID: "1:0", Name: "Chip", Kind: "RECTANGLE", Visible: true,
		Style: &domain.Style{Background: "#4a9eff", CornerRadius: 8},
	}})
	if !strings.Contains(out, "background-color: #4a9eff; border-radius: 8px;") {
		t.Fatalf("expected visual styles in:\n%s", out)
	}
}

// --- Structure ---

func TestGenerate_NestingAndIndent(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := frameNode("1:0", "Screen", 100, 100)
	child := frameNode("1:1", "Inner", 50, 50)
	child.Children = []*domain.Node{{ID: "1:2", Name: "Leaf", Kind: "TEXT", Visible: true, Category: "text", Text: "hi"}}
	root.Children = []*domain.Node{child}

	out := g.Generate([]*domain.Node{root})
	if !strings.Contains(out, "\n  <div") {
		t.Fatalf("expected indented child:\n%s", out)
	}
	if !strings.Contains(out, "\n    <span") {
		t.Fatalf("expected doubly indented grandchild:\n%s", out)
	}
	if !strings.HasSuffix(out, "</div>\n") {
		t.Fatalf("expected trailing root close:\n%s", out)
	}
}

func TestGenerate_EmptyInput(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	if out := g.Generate(nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
	if out := g.Generate([]*domain.Node{nil}); out != "" {
		t.Fatalf("nil nodes must render nothing, got %q", out)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator(DefaultCenterTolerance)
	root := frameNode("1:0", "Screen", 200, 100)
	root.Children = []*domain.Node{{
		ID: "1:1", Name: "Box", Kind: "RECTANGLE", Visible: true,
		Geometry: &domain.Geometry{X: 10, Y: 10, Width: 100, Height: 20, ParentWidth: 200, ParentHeight: 100},
	}}
	first := g.Generate([]*domain.Node{root})
	second := g.Generate([]*domain.Node{root})
	if first != second {
		t.Fatal("generation must be deterministic")
	}
}

func TestNewGenerator_NegativeToleranceUsesDefault(t *testing.T) {
	g := NewGenerator(-1)
	if g.tolerance != DefaultCenterTolerance {
		t.Fatalf("expected default tolerance, got %v", g.tolerance)
	}
}
