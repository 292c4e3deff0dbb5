package domain

import (
	"testing"
	"time"
)

func sampleTree() *Node {
	now := time.Now()
	return &Node{
		ID:       "1:1",
		Name:     "Card",
		Kind:     "FRAME",
		Visible:  true,
		Geometry: &Geometry{X: 10, Y: 20, Width: 100, Height: 50, ParentWidth: 375, ParentHeight: 812},
		Style:    &Style{Background: "#ff0000", CornerRadius: 8},
		PluginData: map[string]string{
			"component": "card",
		},
		Comments: []Comment{{ID: "c1", Message: "hi", User: "ana", CreatedAt: now}},
		Children: []*Node{
			{ID: "1:2", Name: "Title", Kind: "TEXT", Visible: true, Text: "Hello"},
			{ID: "1:3", Name: "Body", Kind: "TEXT", Visible: true, Children: []*Node{
				{ID: "1:4", Name: "Inner", Kind: "TEXT", Visible: true},
			}},
		},
	}
}

// --- Clone ---

func TestClone_NilNode(t *testing.T) {
	var n *Node
	if n.Clone() != nil {
		t.Fatal("expected nil clone of nil node")
	}
}

func TestClone_Independence(t *testing.T) {
	orig := sampleTree()
	cp := orig.Clone()

	cp.Name = "Mutated"
	cp.Geometry.X = 999
	cp.Style.Background = "#000000"
	cp.PluginData["component"] = "changed"
	cp.Comments[0].Message = "changed"
	cp.Children[0].Text = "changed"
	cp.Children[1].Children[0].Name = "changed"

	if orig.Name != "Card" {
		t.Fatalf("name leaked: %q", orig.Name)
	}
	if orig.Geometry.X != 10 {
		t.Fatalf("geometry leaked: %d", orig.Geometry.X)
	}
	if orig.Style.Background != "#ff0000" {
		t.Fatalf("style leaked: %q", orig.Style.Background)
	}
	if orig.PluginData["component"] != "card" {
		t.Fatalf("plugin data leaked: %q", orig.PluginData["component"])
	}
	if orig.Comments[0].Message != "hi" {
		t.Fatalf("comments leaked: %q", orig.Comments[0].Message)
	}
	if orig.Children[0].Text != "Hello" {
		t.Fatalf("child leaked: %q", orig.Children[0].Text)
	}
	if orig.Children[1].Children[0].Name != "Inner" {
		t.Fatalf("grandchild leaked: %q", orig.Children[1].Children[0].Name)
	}
}

func TestClone_OmitsAbsentRecords(t *testing.T) {
	cp := (&Node{ID: "1:1", Kind: "RECTANGLE"}).Clone()
	if cp.Geometry != nil || cp.Style != nil || cp.PluginData != nil || cp.Comments != nil || cp.Children != nil {
		t.Fatalf("absent records must stay absent: %+v", cp)
	}
}

// --- CloneNodes ---

func TestCloneNodes_Nil(t *testing.T) {
	if CloneNodes(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestCloneNodes_CopiesEach(t *testing.T) {
	in := []*Node{sampleTree(), {ID: "9:9", Kind: "FRAME"}}
	out := CloneNodes(in)

	if len(out) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(out))
	}
	out[0].ID = "changed"
	if in[0].ID != "1:1" {
		t.Fatalf("clone leaked into input: %q", in[0].ID)
	}
}

// --- Walk / CollectIDs ---

func TestWalk_DocumentOrder(t *testing.T) {
	var got []string
	sampleTree().Walk(func(n *Node) { got = append(got, n.ID) })

	want := []string{"1:1", "1:2", "1:3", "1:4"}
	if len(got) != len(want) {
		t.Fatalf("expected %d visits, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visit %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestWalk_NilReceiver(t *testing.T) {
	var n *Node
	n.Walk(func(*Node) { t.Fatal("nil node must not be visited") })
}

func TestCollectIDs_SpansTrees(t *testing.T) {
	ids := CollectIDs([]*Node{sampleTree(), {ID: "9:9"}})

	want := []string{"1:1", "1:2", "1:3", "1:4", "9:9"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("id %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestCollectIDs_Empty(t *testing.T) {
	if ids := CollectIDs(nil); ids != nil {
		t.Fatalf("expected no ids, got %v", ids)
	}
}
