package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "metric"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "value"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "revenue"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     func(t *testing.T) []byte
		want     string
	}{
		{
			name:     "csv is normalized",
			fileName: "report.CSV",
			data:     func(*testing.T) []byte { return []byte("a,b\n1,\"x y\"\n2\n") },
			want:     "a,b\n1,x y\n2",
		},
		{
			name:     "docx paragraphs",
			fileName: "notes.docx",
			data: func(t *testing.T) []byte {
				return buildDOCX(t, `<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
					`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>line</w:t></w:r></w:p>`)
			},
			want: "Hello world\nSecond\tline",
		},
		{
			name:     "xlsx rows as csv",
			fileName: "kpi.xlsx",
			data:     buildXLSX,
			want:     "metric,value\nrevenue,42",
		},
		{
			name:     "plain text",
			fileName: "readme.txt",
			data:     func(*testing.T) []byte { return []byte("  just text \n") },
			want:     "just text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.fileName, tt.data(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText_Errors(t *testing.T) {
	_, err := Text("legacy.xls", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Text("noext", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Text("empty.txt", []byte("   \n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Text("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)

	_, err = Text("broken.docx", []byte("not a zip"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("a.docx"))
	assert.False(t, Supported("a.exe"))
	assert.False(t, Supported("a.xls"))
}

func TestParseSummary(t *testing.T) {
	content := `Summary: Quarterly revenue grew.
It beat the forecast.

Key Actions:
- Hire two engineers
* Renew the lease
1. Cut cloud spend

KPIs:
- Revenue: 1.2M
- Churn: 3%`

	s := ParseSummary(content)
	assert.Equal(t, "Quarterly revenue grew.\nIt beat the forecast.", s.Summary)
	assert.Equal(t, []string{"Hire two engineers", "Renew the lease", "Cut cloud spend"}, s.KeyActions)
	assert.Equal(t, []string{"Revenue: 1.2M", "Churn: 3%"}, s.KPIs)
}

func TestParseSummary_MissingSections(t *testing.T) {
	s := ParseSummary("no structure at all")
	assert.Empty(t, s.Summary)
	assert.Empty(t, s.KeyActions)
	assert.Empty(t, s.KPIs)

	s = ParseSummary("KPIs: only one")
	assert.Empty(t, s.Summary)
	assert.Equal(t, []string{"only one"}, s.KPIs)
}
