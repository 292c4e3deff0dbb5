// Package markup renders serialized node trees as nested HTML with
// percentage-based positioning. Generation is pure and deterministic: the
// same records always produce the same string, so callers may regenerate
// freely.
package markup

import (
	"fmt"
	"html"
	"math"
	"strings"

	"figlens/internal/domain"
)

// DefaultCenterTolerance is how close (in px) a child's horizontal center
// must be to its parent's before it is treated as centered.
const DefaultCenterTolerance = 5.0

type Generator struct {
	tolerance float64
}

func NewGenerator(tolerance float64) *Generator {
	if tolerance < 0 {
		tolerance = DefaultCenterTolerance
	}
	return &Generator{tolerance: tolerance}
}

// Generate renders the trees in order. Top-level nodes keep literal pixel
// sizing and act as the layout origin; every descendant is positioned in
// percentages of its recorded parent dimensions.
func (g *Generator) Generate(nodes []*domain.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		g.writeNode(&b, n, 0, true)
	}
	return b.String()
}

func (g *Generator) writeNode(b *strings.Builder, n *domain.Node, depth int, root bool) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	tag := tagFor(n.Category)

	b.WriteString(indent)
	b.WriteString("<")
	b.WriteString(tag)
	if class := SanitizeClass(n.Name); class != "" {
		b.WriteString(` class="`)
		b.WriteString(class)
		b.WriteString(`"`)
	}
	if style := g.styleFor(n, root); style != "" {
		b.WriteString(` style="`)
		b.WriteString(style)
		b.WriteString(`"`)
	}
	b.WriteString(">")

	if n.Text == "" && len(n.Children) == 0 {
		b.WriteString("</")
		b.WriteString(tag)
		b.WriteString(">\n")
		return
	}

	b.WriteString("\n")
	if n.Text != "" {
		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(html.EscapeString(n.Text))
		b.WriteString("\n")
	}
	for _, c := range n.Children {
		g.writeNode(b, c, depth+1, false)
	}
	b.WriteString(indent)
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">\n")
}

// styleFor builds the inline declarations for one node. A child whose
// recorded parent dimensions are zero cannot produce percentages and is
// emitted without positional styles.
func (g *Generator) styleFor(n *domain.Node, root bool) string {
	var parts []string
	geo := n.Geometry

	switch {
	case root:
		parts = append(parts, "position: relative")
		if geo != nil {
			parts = append(parts,
				fmt.Sprintf("width: %dpx", geo.Width),
				fmt.Sprintf("height: %dpx", geo.Height))
		}
	case geo != nil && geo.ParentWidth > 0 && geo.ParentHeight > 0:
		parts = append(parts, "position: absolute")
		childCenter := float64(geo.X) + float64(geo.Width)/2
		parentCenter := float64(geo.ParentWidth) / 2
		if math.Abs(childCenter-parentCenter) <= g.tolerance {
			parts = append(parts, "left: 50%", "transform: translateX(-50%)")
		} else {
			parts = append(parts, "left: "+percent(geo.X, geo.ParentWidth))
		}
		parts = append(parts,
			"top: "+percent(geo.Y, geo.ParentHeight),
			"width: "+percent(geo.Width, geo.ParentWidth),
			"height: "+percent(geo.Height, geo.ParentHeight))
	}

	if st := n.Style; st != nil {
		if st.Background != "" {
			parts = append(parts, "background-color: "+st.Background)
		}
		if st.CornerRadius > 0 {
			parts = append(parts, fmt.Sprintf("border-radius: %dpx", st.CornerRadius))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

func percent(v, parent int) string {
	return fmt.Sprintf("%.2f%%", float64(v)/float64(parent)*100)
}

func tagFor(category string) string {
	switch category {
	case "button":
		return "button"
	case "text":
		return "span"
	default:
		return "div"
	}
}
