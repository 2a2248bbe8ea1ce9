package xlsx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/opc"
	"github.com/tsawler/sheetkit/xlerr"
)

// emuPerPixel converts screen pixels at 96 dpi to English Metric Units.
const emuPerPixel = 9525

const emptyDrawingXML = `<xdr:wsDr xmlns:xdr="` + nsSheetDrawing + `" xmlns:a="` + nsDrawingML + `"></xdr:wsDr>`

// Anchor describes one object placed on a drawing.
type Anchor struct {
	Kind        string // twoCellAnchor, oneCellAnchor or absoluteAnchor
	From        Coord  // zero for absolute anchors
	To          Coord  // set for two-cell anchors
	ID          int
	Name        string
	Description string
	ImageRID    string // drawing relationship of a picture; empty for other objects
}

// ImageAnchor places a new picture. Offsets are in pixels from the
// top-left corner of Cell. Zero scales mean 1.
type ImageAnchor struct {
	Cell        string
	OffsetX     int
	OffsetY     int
	ScaleX      float64
	ScaleY      float64
	Name        string
	Description string
}

// Drawing is the drawing part of a worksheet. Anchors it does not create
// are kept exactly as loaded.
type Drawing struct {
	pkg     *opc.Package
	part    string
	doc     *xmlpart.Document
	anchors []Anchor
	dirty   bool
}

type markerXML struct {
	Col int `xml:"col"`
	Row int `xml:"row"`
}

type cNvPrXML struct {
	ID    int    `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr"`
}

type anchorXML struct {
	XMLName xml.Name
	From    *markerXML `xml:"from"`
	To      *markerXML `xml:"to"`
	Pic     *struct {
		CNvPr    cNvPrXML `xml:"nvPicPr>cNvPr"`
		BlipFill struct {
			Blip struct {
				Attrs []xml.Attr `xml:",any,attr"`
			} `xml:"blip"`
		} `xml:"blipFill"`
	} `xml:"pic"`
	Sp           *cNvPrXML `xml:"sp>nvSpPr>cNvPr"`
	GraphicFrame *cNvPrXML `xml:"graphicFrame>nvGraphicFramePr>cNvPr"`
	CxnSp        *cNvPrXML `xml:"cxnSp>nvCxnSpPr>cNvPr"`
	GrpSp        *cNvPrXML `xml:"grpSp>nvGrpSpPr>cNvPr"`
}

func (a *anchorXML) anchor() Anchor {
	out := Anchor{Kind: a.XMLName.Local}
	if a.From != nil {
		out.From = Coord{Row: a.From.Row + 1, Col: a.From.Col + 1}
	}
	if a.To != nil {
		out.To = Coord{Row: a.To.Row + 1, Col: a.To.Col + 1}
	}
	var nv *cNvPrXML
	switch {
	case a.Pic != nil:
		nv = &a.Pic.CNvPr
		for _, attr := range a.Pic.BlipFill.Blip.Attrs {
			if attr.Name.Local == "embed" {
				out.ImageRID = attr.Value
			}
		}
	case a.Sp != nil:
		nv = a.Sp
	case a.GraphicFrame != nil:
		nv = a.GraphicFrame
	case a.CxnSp != nil:
		nv = a.CxnSp
	case a.GrpSp != nil:
		nv = a.GrpSp
	}
	if nv != nil {
		out.ID, out.Name, out.Description = nv.ID, nv.Name, nv.Descr
	}
	return out
}

func isAnchor(local string) bool {
	return local == "twoCellAnchor" || local == "oneCellAnchor" || local == "absoluteAnchor"
}

func parseDrawing(pkg *opc.Package, part string, data []byte) (*Drawing, error) {
	doc, err := xmlpart.Parse(data, nil)
	if err != nil {
		return nil, xlerr.Format("load", part, err)
	}
	d := &Drawing{pkg: pkg, part: part, doc: doc}
	for _, c := range doc.Children {
		for _, id := range c.RelIDs {
			if _, err := pkg.Resolve(part, id); err != nil {
				return nil, xlerr.Integrityf("load", part, "relationship %q is not declared", id)
			}
		}
		if !isAnchor(c.Name.Local) {
			continue
		}
		var a anchorXML
		if err := xml.Unmarshal(c.Raw, &a); err != nil {
			return nil, xlerr.Format("load", part, err)
		}
		d.anchors = append(d.anchors, a.anchor())
	}
	return d, nil
}

// Part returns the name of the drawing part.
func (d *Drawing) Part() string {
	return d.part
}

// Anchors returns the anchored objects in document order.
func (d *Drawing) Anchors() []Anchor {
	out := make([]Anchor, len(d.anchors))
	copy(out, d.anchors)
	return out
}

// ImagePart returns the media part a picture relationship points at.
func (d *Drawing) ImagePart(rid string) (string, error) {
	return d.pkg.ResolvePart(d.part, rid)
}

func (d *Drawing) nextID() int {
	id := 0
	for _, a := range d.anchors {
		id = max(id, a.ID)
	}
	return id + 1
}

func (d *Drawing) render() ([]byte, error) {
	w := xmlpart.NewWriter()
	defer w.Release()
	if err := d.doc.Write(w, nil, nil); err != nil {
		return nil, xlerr.Format("write drawing", d.part, err)
	}
	return w.Bytes(), nil
}

// Drawing returns the sheet's drawing, parsing it on first use. It
// returns nil when the sheet has none.
func (ws *Worksheet) Drawing() (*Drawing, error) {
	if ws.drawingRID == "" {
		return nil, nil
	}
	if ws.drawing != nil {
		return ws.drawing, nil
	}
	part, err := ws.wb.pkg.ResolvePart(ws.part, ws.drawingRID)
	if err != nil {
		return nil, err
	}
	data, err := ws.wb.pkg.GetPart(part)
	if err != nil {
		return nil, err
	}
	d, err := parseDrawing(ws.wb.pkg, part, data)
	if err != nil {
		return nil, err
	}
	ws.drawing = d
	return d, nil
}

func (ws *Worksheet) ensureDrawing() (*Drawing, error) {
	if ws.drawingRID != "" {
		return ws.Drawing()
	}
	doc, err := xmlpart.Parse([]byte(emptyDrawingXML), nil)
	if err != nil {
		return nil, xlerr.Format("attach image", "", err)
	}
	pkg := ws.wb.pkg
	part := pkg.UniquePartName("xl/drawings/drawing%d.xml")
	d := &Drawing{pkg: pkg, part: part, doc: doc, dirty: true}
	data, err := d.render()
	if err != nil {
		return nil, err
	}
	if err := pkg.AddPart(part, ctDrawing, data); err != nil {
		return nil, err
	}
	rid, err := pkg.AddRelationship(ws.part, opc.RelTypeDrawing, part, opc.Internal)
	if err != nil {
		return nil, err
	}
	ws.drawingRID = rid
	ws.drawing = d
	return d, nil
}

// AttachImage stores image in the package and places it on the sheet. The
// format and pixel size are read from the image itself. The returned id is
// the drawing relationship naming the image.
func (ws *Worksheet) AttachImage(img []byte, anchor ImageAnchor) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", xlerr.Valuef("attach image", "unrecognized image: %v", err)
	}
	at, err := ParseCoord(anchor.Cell)
	if err != nil {
		return "", err
	}
	sx, sy := anchor.ScaleX, anchor.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if sx < 0 || sy < 0 || anchor.OffsetX < 0 || anchor.OffsetY < 0 {
		return "", xlerr.Valuef("attach image", "negative offset or scale")
	}

	d, err := ws.ensureDrawing()
	if err != nil {
		return "", err
	}
	pkg := ws.wb.pkg
	media := pkg.UniquePartName("xl/media/image%d." + format)
	if err := pkg.AddPart(media, "image/"+format, img); err != nil {
		return "", err
	}
	rid, err := pkg.AddRelationship(d.part, opc.RelTypeImage, media, opc.Internal)
	if err != nil {
		return "", err
	}

	a := Anchor{
		Kind:        "oneCellAnchor",
		From:        at,
		ID:          d.nextID(),
		Name:        anchor.Name,
		Description: anchor.Description,
		ImageRID:    rid,
	}
	if a.Name == "" {
		a.Name = "Picture " + strconv.Itoa(a.ID)
	}
	cx := int64(float64(cfg.Width*emuPerPixel) * sx)
	cy := int64(float64(cfg.Height*emuPerPixel) * sy)
	frag := d.pictureAnchor(a, anchor.OffsetX*emuPerPixel, anchor.OffsetY*emuPerPixel, cx, cy)

	d.doc.Children = append(d.doc.Children, xmlpart.Child{
		Name:   xml.Name{Space: nsSheetDrawing, Local: a.Kind},
		Raw:    frag,
		RelIDs: []string{rid},
	})
	d.anchors = append(d.anchors, a)
	d.dirty = true
	return rid, nil
}

// pictureAnchor builds a oneCellAnchor holding a picture, using the
// prefixes declared on the drawing's root.
func (d *Drawing) pictureAnchor(a Anchor, offX, offY int, cx, cy int64) []byte {
	xdr := qualify(d.doc.ElementPrefix())
	dml := qualify(d.doc.Prefix(nsDrawingML, "a"))
	rel := qualify(d.doc.Prefix(nsRelationships, "r"))
	ext := func(v int64) string { return strconv.FormatInt(v, 10) }

	w := xmlpart.NewWriter()
	defer w.Release()
	w.Start(xdr(a.Kind))
	w.Start(xdr("from"))
	w.Element(xdr("col"), strconv.Itoa(a.From.Col-1))
	w.Element(xdr("colOff"), strconv.Itoa(offX))
	w.Element(xdr("row"), strconv.Itoa(a.From.Row-1))
	w.Element(xdr("rowOff"), strconv.Itoa(offY))
	w.End(xdr("from"))
	w.Empty(xdr("ext"), xmlpart.A("cx", ext(cx)), xmlpart.A("cy", ext(cy)))

	w.Start(xdr("pic"))
	w.Start(xdr("nvPicPr"))
	w.Empty(xdr("cNvPr"), xmlpart.AInt("id", a.ID), xmlpart.Attr{Name: "name", Value: a.Name, Keep: true}, xmlpart.A("descr", a.Description))
	w.Start(xdr("cNvPicPr"))
	w.Empty(dml("picLocks"), xmlpart.ABool("noChangeAspect", true))
	w.End(xdr("cNvPicPr"))
	w.End(xdr("nvPicPr"))

	w.Start(xdr("blipFill"))
	w.Empty(dml("blip"), xmlpart.A(rel("embed"), a.ImageRID))
	w.Start(dml("stretch"))
	w.Empty(dml("fillRect"))
	w.End(dml("stretch"))
	w.End(xdr("blipFill"))

	w.Start(xdr("spPr"))
	w.Start(dml("xfrm"))
	w.Empty(dml("off"), xmlpart.A("x", "0"), xmlpart.A("y", "0"))
	w.Empty(dml("ext"), xmlpart.A("cx", ext(cx)), xmlpart.A("cy", ext(cy)))
	w.End(dml("xfrm"))
	w.Start(dml("prstGeom"), xmlpart.A("prst", "rect"))
	w.Empty(dml("avLst"))
	w.End(dml("prstGeom"))
	w.End(xdr("spPr"))
	w.End(xdr("pic"))

	w.Empty(xdr("clientData"))
	w.End(xdr(a.Kind))
	return w.Bytes()
}

func qualify(prefix string) func(local string) string {
	return func(local string) string {
		if prefix == "" {
			return local
		}
		return fmt.Sprintf("%s:%s", prefix, local)
	}
}
