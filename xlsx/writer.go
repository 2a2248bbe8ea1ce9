package xlsx

import (
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/opc"
)

// workbookOrder is the child sequence of CT_Workbook.
var workbookOrder = []string{
	"fileVersion", "fileSharing", "workbookPr", "workbookProtection", "bookViews",
	"sheets", "functionGroups", "externalReferences", "definedNames", "calcPr",
	"oleSize", "customWorkbookViews", "pivotCaches", "smartTagPr", "smartTagTypes",
	"webPublishing", "fileRecoveryPr", "webPublishObjects", "extLst",
}

// Save writes the workbook as a package to w.
func (wb *Workbook) Save(w io.Writer) error {
	if err := wb.flush(); err != nil {
		return err
	}
	return wb.pkg.Save(w)
}

// SaveFile writes the workbook to the named file. The file is replaced
// only once the whole package has been written.
func (wb *Workbook) SaveFile(name string) error {
	if err := wb.flush(); err != nil {
		return err
	}
	return wb.pkg.SaveFile(name)
}

// put stores a part, keeping the content type of a part that exists.
func (wb *Workbook) put(name, contentType string, data []byte) error {
	if ct := wb.pkg.ContentType(name); ct != "" && wb.pkg.HasPart(name) {
		contentType = ct
	}
	return wb.pkg.AddPart(name, contentType, data)
}

// flush renders every modeled part into the package.
func (wb *Workbook) flush() error {
	start := time.Now()

	plan := newSSTPlan(wb.sst)
	var sheets []*Worksheet
	var orders [][]Coord
	for _, e := range wb.sheets {
		if e.ws == nil {
			continue
		}
		sheets = append(sheets, e.ws)
		orders = append(orders, e.ws.prepare(plan))
	}

	if err := wb.flushStyles(); err != nil {
		return err
	}

	out := make([][]byte, len(sheets))
	var g errgroup.Group
	g.SetLimit(wb.opts.limit())
	for i, ws := range sheets {
		g.Go(func() error {
			data, err := ws.render(orders[i], plan)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, ws := range sheets {
		if err := wb.put(ws.part, ctWorksheet, out[i]); err != nil {
			return err
		}
		if d := ws.drawing; d != nil && d.dirty {
			data, err := d.render()
			if err != nil {
				return err
			}
			if err := wb.put(d.part, ctDrawing, data); err != nil {
				return err
			}
			d.dirty = false
		}
	}

	if err := wb.flushSharedStrings(plan); err != nil {
		return err
	}
	if err := wb.flushWorkbook(); err != nil {
		return err
	}
	if err := wb.flushProperties(); err != nil {
		return err
	}
	for _, r := range relsOfKind(wb.pkg, wb.part, "calcChain") {
		if err := wb.pkg.RemoveRelationship(wb.part, r.ID); err != nil {
			return err
		}
		wb.log.Debug("dropped calculation chain", "target", r.Target)
	}

	wb.log.Debug("workbook rendered", "sheets", len(sheets), "strings", len(plan.order), "elapsed", time.Since(start))
	return nil
}

func (wb *Workbook) flushStyles() error {
	data, err := wb.styles.render()
	if err != nil {
		return err
	}
	if wb.stylesPart != "" {
		return wb.put(wb.stylesPart, ctStyles, data)
	}
	part := "xl/styles.xml"
	if err := wb.pkg.AddPart(part, ctStyles, data); err != nil {
		return err
	}
	if _, err := wb.pkg.AddRelationship(wb.part, opc.RelTypeStyles, part, opc.Internal); err != nil {
		return err
	}
	wb.stylesPart = part
	return nil
}

func (wb *Workbook) flushSharedStrings(plan *sstPlan) error {
	if len(plan.order) == 0 && wb.sstPart == "" {
		return nil
	}
	if wb.sstDoc == nil {
		wb.sstDoc = xmlpart.NewDocument("sst", xmlpart.Namespace{URL: nsSpreadsheetML})
	}
	data, err := plan.render(wb.sstDoc)
	if err != nil {
		return err
	}
	if wb.sstPart != "" {
		return wb.put(wb.sstPart, ctSharedStrings, data)
	}
	part := "xl/sharedStrings.xml"
	if err := wb.pkg.AddPart(part, ctSharedStrings, data); err != nil {
		return err
	}
	if _, err := wb.pkg.AddRelationship(wb.part, opc.RelTypeSharedStrings, part, opc.Internal); err != nil {
		return err
	}
	wb.sstPart = part
	return nil
}

func (wb *Workbook) flushWorkbook() error {
	doc := wb.doc
	rel := doc.Prefix(wb.relNS, "r") + ":id"
	body := func(fn func(w *xmlpart.Writer)) []byte {
		w := xmlpart.NewWriter()
		defer w.Release()
		w.SetElementPrefix(doc.ElementPrefix())
		fn(w)
		return w.Bytes()
	}

	sections := []xmlpart.Section{
		rawSection("sheets", body(func(w *xmlpart.Writer) {
			w.Start("sheets")
			for _, e := range wb.sheets {
				attrs := []xmlpart.Attr{
					{Name: "name", Value: e.info.Name, Keep: true},
					xmlpart.AInt("sheetId", e.info.SheetID),
					xmlpart.A("state", e.info.Visibility.attr()),
					xmlpart.A(rel, e.rid),
				}
				w.Empty("sheet", append(attrs, qualified(doc, e.attrs)...)...)
			}
			w.End("sheets")
		})),
	}
	if len(wb.names) > 0 {
		index := make(map[*sheetEntry]int, len(wb.sheets))
		for i, e := range wb.sheets {
			index[e] = i
		}
		sections = append(sections, rawSection("definedNames", body(func(w *xmlpart.Writer) {
			w.Start("definedNames")
			for _, n := range wb.names {
				attrs := []xmlpart.Attr{{Name: "name", Value: n.Name, Keep: true}}
				if n.sheet != nil {
					attrs = append(attrs, xmlpart.Attr{Name: "localSheetId", Value: strconv.Itoa(index[n.sheet]), Keep: true})
				}
				attrs = append(attrs,
					xmlpart.ABool("hidden", n.Hidden),
					xmlpart.A("comment", n.Comment),
				)
				w.Element("definedName", n.Value, append(attrs, qualified(doc, n.attrs)...)...)
			}
			w.End("definedNames")
		})))
	}

	w := xmlpart.NewWriter()
	defer w.Release()
	if err := doc.Write(w, sections, workbookOrder); err != nil {
		return err
	}
	return wb.put(wb.part, ctWorkbook, w.Bytes())
}

func (wb *Workbook) flushProperties() error {
	if !wb.propsDirty {
		return nil
	}
	p := wb.props
	w := xmlpart.NewWriter()
	defer w.Release()
	w.RawString(xmlpart.Header)
	w.Start("cp:coreProperties",
		xmlpart.A("xmlns:cp", nsCoreProps),
		xmlpart.A("xmlns:dc", nsDC),
		xmlpart.A("xmlns:dcterms", nsDCTerms),
		xmlpart.A("xmlns:xsi", nsXSI),
	)
	text := func(name, v string) {
		if v != "" {
			w.Element(name, v)
		}
	}
	date := func(name string, t time.Time) {
		if !t.IsZero() {
			w.Element(name, t.UTC().Format(time.RFC3339), xmlpart.A("xsi:type", "dcterms:W3CDTF"))
		}
	}
	text("dc:title", p.Title)
	text("dc:subject", p.Subject)
	text("dc:creator", p.Creator)
	text("cp:keywords", p.Keywords)
	text("dc:description", p.Description)
	text("cp:lastModifiedBy", p.LastModifiedBy)
	text("cp:revision", p.Revision)
	date("dcterms:created", p.Created)
	date("dcterms:modified", p.Modified)
	text("cp:category", p.Category)
	text("cp:contentStatus", p.ContentStatus)
	w.End("cp:coreProperties")

	if wb.propsPart != "" {
		if err := wb.put(wb.propsPart, ctCoreProperties, w.Bytes()); err != nil {
			return err
		}
		wb.propsDirty = false
		return nil
	}
	part := "docProps/core.xml"
	if err := wb.pkg.AddPart(part, ctCoreProperties, w.Bytes()); err != nil {
		return err
	}
	if _, err := wb.pkg.AddRelationship("", opc.RelTypeCoreProperties, part, opc.Internal); err != nil {
		return err
	}
	wb.propsPart = part
	wb.propsDirty = false
	return nil
}
