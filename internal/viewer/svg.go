package viewer

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/wayfarer/internal/collision"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// agentRadius is the drawn radius of an agent in world units.
const agentRadius = 0.5

// BuildSVG renders scene as a top-down SVG document. One world unit maps to
// scale pixels; +Z points down the page.
func BuildSVG(scene Scene, scale float64) *etree.Document {
	if scale <= 0 {
		scale = 1
	}
	b := scene.Bounds
	px := func(x float64) string { return num((x - b.MinX()) * scale) }
	pz := func(z float64) string { return num((z - b.MinZ()) * scale) }
	width := (b.MaxX() - b.MinX()) * scale
	height := (b.MaxZ() - b.MinZ()) * scale

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", svgNamespace)
	svg.CreateAttr("width", num(width))
	svg.CreateAttr("height", num(height))
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %s %s", num(width), num(height)))

	ground := svg.CreateElement("rect")
	ground.CreateAttr("class", "ground")
	ground.CreateAttr("width", num(width))
	ground.CreateAttr("height", num(height))
	ground.CreateAttr("fill", "#f4f1e8")

	statics := svg.CreateElement("g")
	statics.CreateAttr("id", "statics")
	for _, o := range scene.Statics {
		if o == nil {
			continue
		}
		class, fill := "static", "#6b6b6b"
		if !o.Collidable() {
			class, fill = "decoration", "#c8c2b0"
		}
		id := o.ID()
		o.EachVolume(func(box collision.AABB) bool {
			if box.IsEmpty() {
				return false
			}
			r := statics.CreateElement("rect")
			r.CreateAttr("class", class)
			r.CreateAttr("data-id", id)
			r.CreateAttr("x", px(box.Min.X()))
			r.CreateAttr("y", pz(box.Min.Z()))
			r.CreateAttr("width", num((box.Max.X()-box.Min.X())*scale))
			r.CreateAttr("height", num((box.Max.Z()-box.Min.Z())*scale))
			r.CreateAttr("fill", fill)
			return false
		})
	}

	agents := svg.CreateElement("g")
	agents.CreateAttr("id", "agents")
	for _, a := range scene.Frame.Agents {
		c := agents.CreateElement("circle")
		c.CreateAttr("class", a.State)
		c.CreateAttr("data-name", a.Name)
		c.CreateAttr("cx", px(a.Position[0]))
		c.CreateAttr("cy", pz(a.Position[2]))
		c.CreateAttr("r", num(agentRadius*scale))
		c.CreateAttr("fill", stateFill(a.State))
		c.CreateElement("title").SetText(fmt.Sprintf("%s (%s)", a.Name, a.State))
	}

	label := svg.CreateElement("text")
	label.CreateAttr("x", "4")
	label.CreateAttr("y", "14")
	label.CreateAttr("font-family", "monospace")
	label.CreateAttr("font-size", "12")
	label.SetText(StatusLine(scene))

	doc.Indent(2)
	return doc
}

func stateFill(state string) string {
	switch state {
	case "wandering":
		return "#2e8b57"
	case "waiting":
		return "#8fbc8f"
	case "patrolling":
		return "#4169e1"
	case "bouncing":
		return "#d62728"
	default:
		return "#999999"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteSVG writes the rendered scene to w.
func WriteSVG(w io.Writer, scene Scene, scale float64) error {
	if _, err := BuildSVG(scene, scale).WriteTo(w); err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

// SaveSVG writes the rendered scene to path. A leading ~ is expanded.
func SaveSVG(path string, scene Scene, scale float64) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand svg path: %w", err)
	}
	if err := BuildSVG(scene, scale).WriteToFile(expanded); err != nil {
		return fmt.Errorf("failed to write svg to %s: %w", expanded, err)
	}
	return nil
}
