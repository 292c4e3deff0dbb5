package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"figlens/internal/config"
	"figlens/internal/domain"
	"figlens/internal/figma"
	"figlens/internal/markup"
	"figlens/internal/serialize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var (
		format string
		query  string
	)

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Serialize a selection dump offline",
		Long: `Reads a JSON scene dump (as sent by the plugin, or exported with the panel's
Copy button set to JSON input) and runs it through the same serializer the
daemon uses. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}

			objs, err := figma.ParseNodes(data)
			if err != nil {
				return fmt.Errorf("parse scene dump: %w", err)
			}

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				cfg = config.Defaults()
			}
			rules, err := serialize.LoadRules(cfg.Markup.RulesPath)
			if err != nil {
				return fmt.Errorf("category rules: %w", err)
			}

			nodes := serialize.New(serialize.WithCategories(rules)).SerializeAll(objs)

			if query != "" {
				return runQuery(query, nodes)
			}

			switch format {
			case "json":
				out, err := json.MarshalIndent(nodes, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			case "markup":
				fmt.Print(markup.NewGenerator(cfg.Markup.CenterTolerance).Generate(nodes))
			case "tree":
				for _, n := range nodes {
					fmt.Println(renderTree(n))
				}
			default:
				return fmt.Errorf("unknown format: %s (expected json, markup, or tree)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, markup, or tree")
	cmd.Flags().StringVarP(&query, "query", "q", "", "jq expression applied to the serialized JSON")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// runQuery marshals the nodes and applies a jq expression to the result.
func runQuery(query string, nodes []*domain.Node) error {
	q, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	raw, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return err
	}

	iter := q.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("query: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}

var (
	treeEnumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	treeRootStyle = lipgloss.NewStyle().Bold(true)
	treeDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// renderTree draws one serialized tree with box-drawing branches.
func renderTree(root *domain.Node) string {
	t := tree.Root(treeRootStyle.Render(nodeLabel(root))).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(treeEnumStyle)
	for _, c := range root.Children {
		addChild(t, c)
	}
	return t.String()
}

func addChild(parent *tree.Tree, n *domain.Node) {
	if len(n.Children) == 0 {
		parent.Child(nodeLabel(n))
		return
	}
	sub := tree.Root(nodeLabel(n)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(treeEnumStyle)
	for _, c := range n.Children {
		addChild(sub, c)
	}
	parent.Child(sub)
}

func nodeLabel(n *domain.Node) string {
	label := n.Name
	meta := []string{strings.ToLower(n.Kind)}
	if n.Category != "" && n.Category != strings.ToLower(n.Kind) {
		meta = append(meta, n.Category)
	}
	if g := n.Geometry; g != nil {
		meta = append(meta, fmt.Sprintf("%dx%d at %d,%d", g.Width, g.Height, g.X, g.Y))
	}
	if n.Text != "" {
		text := n.Text
		if len(text) > 24 {
			text = text[:24] + "…"
		}
		meta = append(meta, fmt.Sprintf("%q", text))
	}
	return label + " " + treeDimStyle.Render("["+strings.Join(meta, ", ")+"]")
}
