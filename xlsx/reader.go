package xlsx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/opc"
	"github.com/tsawler/sheetkit/xlerr"
)

// Open reads a workbook from r.
func Open(r io.ReaderAt, size int64) (*Workbook, error) {
	return OpenWithOptions(r, size, DefaultOptions())
}

// OpenFile reads a workbook from the named file.
func OpenFile(name string) (*Workbook, error) {
	return OpenFileWithOptions(name, DefaultOptions())
}

// OpenFileWithOptions reads a workbook from the named file using opts.
func OpenFileWithOptions(name string, opts Options) (*Workbook, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, xlerr.IO("open", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, xlerr.IO("open", name, err)
	}
	return OpenWithOptions(f, st.Size(), opts)
}

// OpenWithOptions reads a workbook from r using opts.
//
// Parts are loaded in dependency order: the workbook part, the shared
// string table, the style sheet and then the worksheets, which only read
// the tables and may therefore be parsed in parallel. Drawings are parsed
// on first use.
func OpenWithOptions(r io.ReaderAt, size int64, opts Options) (*Workbook, error) {
	log := opts.logger()
	pkg, err := opc.OpenWithOptions(r, size, opc.Options{Logger: log})
	if err != nil {
		return nil, err
	}

	wb := &Workbook{pkg: pkg, opts: opts, log: log, relNS: nsRelationships}

	main := relsOfKind(pkg, "", "officeDocument")
	if len(main) == 0 {
		return nil, xlerr.Format("open", "", errors.New("package has no workbook part"))
	}
	if wb.part, err = pkg.ResolvePart("", main[0].ID); err != nil {
		return nil, err
	}

	if err := wb.loadWorkbook(); err != nil {
		return nil, err
	}
	if err := wb.loadSharedStrings(); err != nil {
		return nil, err
	}
	if err := wb.loadStyles(); err != nil {
		return nil, err
	}
	if err := wb.loadSheets(); err != nil {
		return nil, err
	}
	if err := wb.checkDrawings(); err != nil {
		return nil, err
	}
	wb.loadProperties()
	return wb, nil
}

// relKind returns the last segment of a relationship type, which is the
// same in transitional and strict documents.
func relKind(relType string) string {
	return relType[strings.LastIndexByte(relType, '/')+1:]
}

func relsOfKind(pkg *opc.Package, owner, kind string) []opc.Relationship {
	var out []opc.Relationship
	for _, r := range pkg.Relationships(owner) {
		if relKind(r.Type) == kind {
			out = append(out, r)
		}
	}
	return out
}

func (wb *Workbook) loadWorkbook() error {
	data, err := wb.pkg.GetPart(wb.part)
	if err != nil {
		return err
	}

	var (
		refs  []sheetRefXML
		names []definedNameXML
	)
	doc, err := xmlpart.Parse(data, map[string]xmlpart.Handler{
		"sheets": func(d *xml.Decoder, start xml.StartElement) error {
			var s struct {
				Sheet []sheetRefXML `xml:"sheet"`
			}
			if err := d.DecodeElement(&s, &start); err != nil {
				return err
			}
			refs = s.Sheet
			return nil
		},
		"definedNames": func(d *xml.Decoder, start xml.StartElement) error {
			var s struct {
				Name []definedNameXML `xml:"definedName"`
			}
			if err := d.DecodeElement(&s, &start); err != nil {
				return err
			}
			names = s.Name
			return nil
		},
	})
	if err != nil {
		return xlerr.Format("load", wb.part, err)
	}
	wb.doc = doc
	if doc.Name.Space == nsSpreadsheetMLStrict {
		wb.relNS = xmlpart.NSRelationshipsStrict
	}

	for _, raw := range doc.Raw("workbookPr") {
		var pr workbookPrXML
		if err := xml.Unmarshal(raw, &pr); err != nil {
			return xlerr.Format("load", wb.part, err)
		}
		wb.date1904 = xmlBool(pr.Date1904)
	}
	for _, id := range doc.RelIDs() {
		if _, err := wb.pkg.Resolve(wb.part, id); err != nil {
			return xlerr.Integrityf("load", wb.part, "relationship %q is not declared", id)
		}
	}

	if len(refs) == 0 {
		return xlerr.Format("load", wb.part, errors.New("workbook lists no sheets"))
	}
	fold := cases.Fold()
	seenNames := make(map[string]bool, len(refs))
	seenParts := make(map[string]*sheetEntry, len(refs))
	for _, ref := range refs {
		key := fold.String(ref.Name)
		if seenNames[key] {
			return xlerr.Integrityf("load", wb.part, "duplicate sheet name %q", ref.Name)
		}
		seenNames[key] = true
		rid, rest := relID(ref.Attrs)
		rel, err := wb.pkg.Resolve(wb.part, rid)
		if err != nil {
			return xlerr.Integrityf("load", wb.part, "sheet %q: relationship %q is not declared", ref.Name, rid)
		}
		path, err := wb.pkg.ResolvePart(wb.part, rid)
		if err != nil {
			return err
		}
		if other, dup := seenParts[path]; dup {
			return xlerr.Integrityf("load", wb.part, "sheets %q and %q share part %s", other.info.Name, ref.Name, path)
		}
		e := &sheetEntry{
			info: SheetInfo{
				Name:       ref.Name,
				SheetID:    ref.SheetID,
				Path:       path,
				Visibility: visibility(ref.State),
			},
			rid:   rid,
			attrs: rest,
		}
		switch relKind(rel.Type) {
		case "worksheet":
			e.info.Kind = KindWorksheet
		case "chartsheet":
			e.info.Kind = KindChartsheet
		default:
			e.info.Kind = KindOther
		}
		seenParts[path] = e
		wb.sheets = append(wb.sheets, e)
	}

	for _, n := range names {
		dn := &definedName{
			DefinedName: DefinedName{
				Name:    n.Name,
				Value:   n.Value,
				Hidden:  xmlBool(n.Hidden),
				Comment: n.Comment,
			},
			attrs: n.Attrs,
		}
		if n.LocalSheetID != nil {
			i := *n.LocalSheetID
			if i < 0 || i >= len(wb.sheets) {
				return xlerr.Integrityf("load", wb.part, "defined name %q is scoped to sheet %d of %d", n.Name, i, len(wb.sheets))
			}
			dn.sheet = wb.sheets[i]
		}
		wb.names = append(wb.names, dn)
	}
	return nil
}

func (wb *Workbook) loadSharedStrings() error {
	rels := relsOfKind(wb.pkg, wb.part, "sharedStrings")
	if len(rels) == 0 {
		wb.sst = NewSharedStrings()
		return nil
	}
	part, err := wb.pkg.ResolvePart(wb.part, rels[0].ID)
	if err != nil {
		return err
	}
	data, err := wb.pkg.GetPart(part)
	if err != nil {
		return err
	}
	wb.sst, wb.sstDoc, err = parseSharedStrings(part, data)
	if err != nil {
		return err
	}
	wb.sstPart = part
	return nil
}

func (wb *Workbook) loadStyles() error {
	rels := relsOfKind(wb.pkg, wb.part, "styles")
	if len(rels) == 0 {
		wb.log.Debug("workbook has no style sheet; using defaults", "part", wb.part)
		wb.styles = NewStyleSheet()
		return nil
	}
	part, err := wb.pkg.ResolvePart(wb.part, rels[0].ID)
	if err != nil {
		return err
	}
	data, err := wb.pkg.GetPart(part)
	if err != nil {
		return err
	}
	if wb.styles, err = parseStyleSheet(part, data); err != nil {
		return err
	}
	wb.stylesPart = part
	return nil
}

func (wb *Workbook) loadSheets() error {
	var g errgroup.Group
	g.SetLimit(wb.opts.limit())
	for _, e := range wb.sheets {
		if e.info.Kind != KindWorksheet {
			wb.log.Debug("keeping sheet as is", "sheet", e.info.Name, "part", e.info.Path, "reason", "not a worksheet")
			continue
		}
		data, err := wb.pkg.GetPart(e.info.Path)
		if err != nil {
			return err
		}
		ws := newWorksheet(wb, e, e.info.Path)
		e.ws = ws
		g.Go(func() error {
			if err := ws.parse(data); err != nil {
				return fmt.Errorf("sheet %q: %w", e.info.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// checkDrawings makes sure no two worksheets share a drawing part.
func (wb *Workbook) checkDrawings() error {
	owners := make(map[string]string)
	for _, e := range wb.sheets {
		if e.ws == nil || e.ws.drawingRID == "" {
			continue
		}
		part, err := wb.pkg.ResolvePart(e.info.Path, e.ws.drawingRID)
		if err != nil {
			return err
		}
		if other, ok := owners[part]; ok {
			return xlerr.Integrityf("load", part, "drawing is used by sheets %q and %q", other, e.info.Name)
		}
		owners[part] = e.info.Name
	}
	return nil
}

// loadProperties reads the core properties. They are descriptive only, so
// a damaged part is logged and skipped.
func (wb *Workbook) loadProperties() {
	rels := relsOfKind(wb.pkg, "", "core-properties")
	if len(rels) == 0 {
		return
	}
	part, err := wb.pkg.ResolvePart("", rels[0].ID)
	if err != nil {
		wb.log.Warn("skipping core properties", "reason", err)
		return
	}
	wb.propsPart = part
	data, err := wb.pkg.GetPart(part)
	if err != nil {
		wb.log.Warn("skipping core properties", "part", part, "reason", err)
		return
	}
	var cp corePropertiesXML
	if err := xml.Unmarshal(data, &cp); err != nil {
		wb.log.Warn("skipping core properties", "part", part, "reason", err)
		return
	}
	wb.props = CoreProperties{
		Title:          cp.Title,
		Subject:        cp.Subject,
		Creator:        cp.Creator,
		Keywords:       cp.Keywords,
		Description:    cp.Description,
		LastModifiedBy: cp.LastModifiedBy,
		Revision:       cp.Revision,
		Category:       cp.Category,
		ContentStatus:  cp.ContentStatus,
		Created:        parseW3CDTF(cp.Created),
		Modified:       parseW3CDTF(cp.Modified),
	}
}

func parseW3CDTF(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
