package tscn

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Marshal renders the scene back to text. Attribute order and literal
// spellings follow what was parsed (or set), so parse → Marshal is stable.
func (s *Scene) Marshal() []byte {
	var b strings.Builder
	steps := s.LoadSteps
	if steps == 0 {
		steps = len(s.Ext) + len(s.Subs) + 1
	}
	fmt.Fprintf(&b, "[gd_scene load_steps=%d format=%d]\n", steps, s.Format)

	for _, res := range s.Ext {
		fmt.Fprintf(&b, "\n[ext_resource path=%s type=%s id=%d]\n",
			strconv.Quote(res.Path), strconv.Quote(res.Type), res.ID)
	}

	for _, sub := range s.Subs {
		fmt.Fprintf(&b, "\n[sub_resource type=%s id=%s]\n",
			strconv.Quote(sub.Type), sub.IDLit.String())
		writeAttrs(&b, sub.Attrs)
	}

	for _, n := range s.Nodes {
		b.WriteString("\n[node name=")
		b.WriteString(strconv.Quote(n.Name))
		if n.Type != "" {
			b.WriteString(" type=")
			b.WriteString(strconv.Quote(n.Type))
		}
		if n.Parent != "" {
			b.WriteString(" parent=")
			b.WriteString(strconv.Quote(n.Parent))
		}
		if n.Instance >= 0 {
			fmt.Fprintf(&b, " instance=ExtResource(%d)", n.Instance)
		}
		if _, inBody := n.Attr("script"); n.Script >= 0 && !inBody {
			fmt.Fprintf(&b, " script=ExtResource(%d)", n.Script)
		}
		b.WriteString("]\n")
		writeAttrs(&b, n.Attrs)
	}
	return []byte(b.String())
}

func writeAttrs(b *strings.Builder, attrs []Attr) {
	for _, a := range attrs {
		b.WriteString(a.Key)
		b.WriteString(" = ")
		b.WriteString(a.Value.String())
		b.WriteByte('\n')
	}
}

// WriteTo writes the rendered scene to w.
func (s *Scene) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Marshal())
	return int64(n), err
}

// WriteFile renders the scene to path.
func (s *Scene) WriteFile(path string) error {
	return os.WriteFile(path, s.Marshal(), 0o644)
}
