package opc

import (
	"encoding/xml"
	"path"
	"sort"
	"strings"
)

const (
	contentTypesName = "[Content_Types].xml"

	nsContentTypes = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsPackageRels  = "http://schemas.openxmlformats.org/package/2006/relationships"

	// ContentTypeRelationships is the content type of .rels parts.
	ContentTypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	// ContentTypeXML is the generic XML content type.
	ContentTypeXML = "application/xml"
	// DefaultContentType is assigned to parts the manifest does not cover.
	DefaultContentType = "application/octet-stream"
)

// contentTypesXML represents [Content_Types].xml.
type contentTypesXML struct {
	XMLName   xml.Name      `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []defaultXML  `xml:"Default"`
	Overrides []overrideXML `xml:"Override"`
}

type defaultXML struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type overrideXML struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// manifest resolves part content types on load.
type manifest struct {
	defaults  map[string]string // lower-cased extension -> type
	overrides map[string]string // lower-cased part name -> type
}

func parseManifest(data []byte) (*manifest, error) {
	var ct contentTypesXML
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, err
	}
	m := &manifest{
		defaults:  make(map[string]string, len(ct.Defaults)),
		overrides: make(map[string]string, len(ct.Overrides)),
	}
	for _, d := range ct.Defaults {
		m.defaults[strings.ToLower(strings.TrimPrefix(d.Extension, "."))] = strings.TrimSpace(d.ContentType)
	}
	for _, o := range ct.Overrides {
		m.overrides[strings.ToLower(NormalizeName(o.PartName))] = strings.TrimSpace(o.ContentType)
	}
	return m, nil
}

func (m *manifest) lookup(name string) (string, bool) {
	if ct, ok := m.overrides[strings.ToLower(name)]; ok {
		return ct, true
	}
	if ct, ok := m.defaults[extension(name)]; ok {
		return ct, true
	}
	return "", false
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// buildManifest derives the manifest from the live parts. The first part
// (in name order) with a given extension claims the Default entry for it;
// parts that disagree get an Override. Overrides are never emitted for
// .rels parts.
func buildManifest(parts []*Part) contentTypesXML {
	defaults := map[string]string{
		"rels": ContentTypeRelationships,
		"xml":  ContentTypeXML,
	}

	sorted := make([]*Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var overrides []overrideXML
	for _, part := range sorted {
		ext := extension(part.Name)
		if ct, ok := defaults[ext]; ok {
			if ct != part.ContentType {
				overrides = append(overrides, overrideXML{PartName: "/" + part.Name, ContentType: part.ContentType})
			}
			continue
		}
		if ext != "" {
			defaults[ext] = part.ContentType
			continue
		}
		overrides = append(overrides, overrideXML{PartName: "/" + part.Name, ContentType: part.ContentType})
	}

	exts := make([]string, 0, len(defaults))
	for ext := range defaults {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	out := contentTypesXML{Overrides: overrides}
	for _, ext := range exts {
		out.Defaults = append(out.Defaults, defaultXML{Extension: ext, ContentType: defaults[ext]})
	}
	return out
}
