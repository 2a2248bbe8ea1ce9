// Package format provides container detection for spreadsheet files.
package format

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
)

// Format represents a spreadsheet container format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// XLSX indicates an Office Open XML workbook (.xlsx).
	XLSX
	// XLSM indicates a macro-enabled workbook (.xlsm).
	XLSM
	// XLTX indicates a workbook template (.xltx).
	XLTX
	// XLTM indicates a macro-enabled workbook template (.xltm).
	XLTM
	// OPC indicates a ZIP package that is not a workbook.
	OPC
	// XLS indicates a legacy binary workbook stored in a compound file.
	XLS
	// Encrypted indicates an encrypted package stored in a compound file.
	Encrypted
)

// Main part content types of the workbook flavours.
const (
	ContentTypeWorkbook         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ContentTypeWorkbookMacro    = "application/vnd.ms-excel.sheet.macroEnabled.main+xml"
	ContentTypeTemplate         = "application/vnd.openxmlformats-officedocument.spreadsheetml.template.main+xml"
	ContentTypeTemplateMacro    = "application/vnd.ms-excel.template.macroEnabled.main+xml"
	contentTypesPart            = "[Content_Types].xml"
	maxContentTypesManifestSize = 4 << 20
)

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ErrNoManifest is returned when a ZIP archive has no content-type manifest.
var ErrNoManifest = errors.New("format: missing [Content_Types].xml")

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case XLSX:
		return "XLSX"
	case XLSM:
		return "XLSM"
	case XLTX:
		return "XLTX"
	case XLTM:
		return "XLTM"
	case OPC:
		return "OPC"
	case XLS:
		return "XLS"
	case Encrypted:
		return "Encrypted"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case XLSX:
		return ".xlsx"
	case XLSM:
		return ".xlsm"
	case XLTX:
		return ".xltx"
	case XLTM:
		return ".xltm"
	case XLS:
		return ".xls"
	default:
		return ""
	}
}

// ContentType returns the content type of the workbook part for the
// workbook formats and "" otherwise.
func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return ContentTypeWorkbook
	case XLSM:
		return ContentTypeWorkbookMacro
	case XLTX:
		return ContentTypeTemplate
	case XLTM:
		return ContentTypeTemplateMacro
	default:
		return ""
	}
}

// IsWorkbook reports whether f is one of the ZIP workbook flavours.
func (f Format) IsWorkbook() bool {
	return f >= XLSX && f <= XLTM
}

// IsCompound reports whether f is stored in a compound file.
func (f Format) IsCompound() bool {
	return f == XLS || f == Encrypted
}

// FromContentType maps a workbook part content type to its format.
func FromContentType(ct string) Format {
	switch strings.TrimSpace(ct) {
	case ContentTypeWorkbook:
		return XLSX
	case ContentTypeWorkbookMacro:
		return XLSM
	case ContentTypeTemplate:
		return XLTX
	case ContentTypeTemplateMacro:
		return XLTM
	default:
		return Unknown
	}
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx":
		return XLSX
	case ".xlsm":
		return XLSM
	case ".xltx":
		return XLTX
	case ".xltm":
		return XLTM
	case ".xls":
		return XLS
	default:
		return Unknown
	}
}

// DetectFromMagic checks file magic bytes to determine format.
// A ZIP archive is reported as OPC and a compound file as XLS; use
// DetectFromReader to tell the workbook flavours and encrypted packages
// apart.
func DetectFromMagic(data []byte) Format {
	switch {
	case hasPrefix(data, zipMagic):
		return OPC
	case hasPrefix(data, cfbMagic):
		return XLS
	default:
		return Unknown
	}
}

func hasPrefix(data, magic []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i := range magic {
		if data[i] != magic[i] {
			return false
		}
	}
	return true
}

// DetectFromReader inspects the content to determine format.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	info, err := Inspect(r, size)
	if errors.Is(err, ErrNoManifest) {
		return OPC, nil
	}
	if err != nil {
		return Unknown, err
	}
	return info.Format, nil
}

// Info describes a container.
type Info struct {
	Format Format
	// MainContentType is the workbook part content type for ZIP packages.
	MainContentType string
	// Streams lists the top-level stream names of a compound file.
	Streams []string
	// Properties holds summary information properties of a compound file,
	// keyed by property name.
	Properties map[string]string
}

// Inspect reads enough of r to classify it.
func Inspect(r io.ReaderAt, size int64) (Info, error) {
	magic := make([]byte, 8)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Info{}, err
	}
	magic = magic[:n]

	switch DetectFromMagic(magic) {
	case OPC:
		return inspectZIP(r, size)
	case XLS:
		return inspectCompound(r)
	default:
		return Info{Format: Unknown}, nil
	}
}

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// inspectZIP reads the manifest to find which workbook flavour the
// package holds.
func inspectZIP(r io.ReaderAt, size int64) (Info, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Info{}, err
	}

	var manifest *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, contentTypesPart) {
			manifest = f
			break
		}
	}
	if manifest == nil {
		return Info{Format: OPC}, ErrNoManifest
	}

	rc, err := manifest.Open()
	if err != nil {
		return Info{}, err
	}
	defer rc.Close()

	var ct contentTypes
	if err := xml.NewDecoder(io.LimitReader(rc, maxContentTypesManifestSize)).Decode(&ct); err != nil {
		return Info{}, err
	}

	info := Info{Format: OPC}
	for _, o := range ct.Overrides {
		if f := FromContentType(o.ContentType); f != Unknown {
			info.Format = f
			info.MainContentType = strings.TrimSpace(o.ContentType)
			return info, nil
		}
	}

	// Fall back on the conventional part location.
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/") {
			info.Format = XLSX
			return info, nil
		}
	}
	return info, nil
}

// inspectCompound walks the directory of a compound file. An encrypted
// package carries EncryptionInfo and EncryptedPackage streams; a legacy
// workbook carries a Workbook (or Book) stream.
func inspectCompound(r io.ReaderAt) (Info, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return Info{}, err
	}

	info := Info{Format: Unknown, Properties: make(map[string]string)}
	props := msoleps.New()
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) == 0 {
			info.Streams = append(info.Streams, entry.Name)
		}
		switch entry.Name {
		case "EncryptionInfo", "EncryptedPackage":
			info.Format = Encrypted
		case "Workbook", "Book":
			if info.Format != Encrypted {
				info.Format = XLS
			}
		}
		if msoleps.IsMSOLEPS(entry.Initial) {
			if perr := props.Reset(doc); perr != nil {
				continue
			}
			for _, p := range props.Property {
				if p.Name != "" {
					info.Properties[p.Name] = p.String()
				}
			}
		}
	}
	return info, nil
}
