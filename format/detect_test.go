package format

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{XLSX, "XLSX"},
		{XLSM, "XLSM"},
		{XLTX, "XLTX"},
		{XLTM, "XLTM"},
		{OPC, "OPC"},
		{XLS, "XLS"},
		{Encrypted, "Encrypted"},
		{Unknown, "Unknown"},
		{Format(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormat_Extension(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{XLSX, ".xlsx"},
		{XLSM, ".xlsm"},
		{XLTX, ".xltx"},
		{XLTM, ".xltm"},
		{XLS, ".xls"},
		{OPC, ""},
		{Unknown, ""},
	}

	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("Format(%d).Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormat_ContentTypeRoundTrip(t *testing.T) {
	for _, f := range []Format{XLSX, XLSM, XLTX, XLTM} {
		if !f.IsWorkbook() {
			t.Errorf("%v.IsWorkbook() = false", f)
		}
		if got := FromContentType(f.ContentType()); got != f {
			t.Errorf("FromContentType(%q) = %v, want %v", f.ContentType(), got, f)
		}
	}
	for _, f := range []Format{Unknown, OPC, XLS, Encrypted} {
		if f.IsWorkbook() {
			t.Errorf("%v.IsWorkbook() = true", f)
		}
		if f.ContentType() != "" {
			t.Errorf("%v.ContentType() = %q, want empty", f, f.ContentType())
		}
	}
	if !XLS.IsCompound() || !Encrypted.IsCompound() || XLSX.IsCompound() {
		t.Error("IsCompound misclassifies formats")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"book.xlsx", XLSX},
		{"book.XLSX", XLSX},
		{"book.Xlsx", XLSX},
		{"book.xlsm", XLSM},
		{"book.xltx", XLTX},
		{"book.xltm", XLTM},
		{"book.xls", XLS},
		{"book.XLS", XLS},
		{"book.csv", Unknown},
		{"book", Unknown},
		{"", Unknown},
		{"/path/to/file.xlsx", XLSX},
		{"/path/to/file.xlsm", XLSM},
	}

	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestDetectFromMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{
			name: "ZIP magic bytes",
			data: []byte{0x50, 0x4B, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00},
			want: OPC,
		},
		{
			name: "compound file magic bytes",
			data: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00},
			want: XLS,
		},
		{
			name: "truncated compound file magic",
			data: []byte{0xD0, 0xCF, 0x11, 0xE0},
			want: Unknown,
		},
		{
			name: "empty data",
			data: []byte{},
			want: Unknown,
		},
		{
			name: "short data",
			data: []byte{0x50, 0x4B},
			want: Unknown,
		},
		{
			name: "text file",
			data: []byte("a,b,c\n1,2,3\n"),
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromMagic(tt.data); got != tt.want {
				t.Errorf("DetectFromMagic() = %v, want %v", got, tt.want)
			}
		})
	}
}

// buildZip creates an in-memory ZIP archive from name/content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func manifest(mainType string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/xl/workbook.xml" ContentType="` + mainType + `"/>
</Types>`
}

func TestDetectFromReader_Workbooks(t *testing.T) {
	tests := []struct {
		name     string
		mainType string
		want     Format
	}{
		{"xlsx", ContentTypeWorkbook, XLSX},
		{"xlsm", ContentTypeWorkbookMacro, XLSM},
		{"xltx", ContentTypeTemplate, XLTX},
		{"xltm", ContentTypeTemplateMacro, XLTM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildZip(t, map[string]string{
				"[Content_Types].xml": manifest(tt.mainType),
				"xl/workbook.xml":     "<workbook/>",
			})
			got, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("DetectFromReader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFromReader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFromReader_WorkbookByLocation(t *testing.T) {
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": manifest("application/xml"),
		"xl/workbook.xml":     "<workbook/>",
	})
	got, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("DetectFromReader() error = %v", err)
	}
	if got != XLSX {
		t.Errorf("DetectFromReader() = %v, want XLSX", got)
	}
}

func TestDetectFromReader_OtherPackage(t *testing.T) {
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": manifest("application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"),
		"word/document.xml":   "<document/>",
	})
	got, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("DetectFromReader() error = %v", err)
	}
	if got != OPC {
		t.Errorf("DetectFromReader() = %v, want OPC", got)
	}
}

func TestInspect_NoManifest(t *testing.T) {
	data := buildZip(t, map[string]string{"readme.txt": "hello"})

	info, err := Inspect(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("Inspect() error = %v, want ErrNoManifest", err)
	}
	if info.Format != OPC {
		t.Errorf("Inspect().Format = %v, want OPC", info.Format)
	}

	got, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || got != OPC {
		t.Errorf("DetectFromReader() = %v, %v; want OPC, nil", got, err)
	}
}

func TestInspect_MainContentType(t *testing.T) {
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": manifest(ContentTypeWorkbookMacro),
	})
	info, err := Inspect(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if info.MainContentType != ContentTypeWorkbookMacro {
		t.Errorf("MainContentType = %q", info.MainContentType)
	}
}

func TestInspect_CorruptCompoundFile(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 32)...)
	if _, err := Inspect(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Error("Inspect() on a truncated compound file should fail")
	}
}

func TestDetectFromReader_Unknown(t *testing.T) {
	data := []byte("Hello, World! This is plain text.")
	r := bytes.NewReader(data)

	got, err := DetectFromReader(r, int64(len(data)))
	if err != nil {
		t.Fatalf("DetectFromReader() error = %v", err)
	}
	if got != Unknown {
		t.Errorf("DetectFromReader() = %v, want Unknown", got)
	}
}
