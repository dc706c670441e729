// Package extract извлекает текст из загруженных документов: PDF, DOCX,
// CSV, XLSX и простого текста. Формат определяется по расширению файла.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupported формат файла не поддерживается.
var ErrUnsupported = errors.New("unsupported file type")

// ErrEmpty из файла не удалось извлечь текст.
var ErrEmpty = errors.New("empty content")

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	".pdf":  fromPDF,
	".docx": fromDOCX,
	".csv":  fromCSV,
	".xlsx": fromXLSX,
	".txt":  fromPlain,
	".md":   fromPlain,
}

// Supported сообщает, умеет ли пакет обрабатывать файл с таким именем.
func Supported(fileName string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Text возвращает текст документа.
func Text(fileName string, data []byte) (string, error) {
	const op = "extract.Text"
	ext := strings.ToLower(filepath.Ext(fileName))
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%s: %q: %w", op, ext, ErrUnsupported)
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmpty)
	}
	return text, nil
}

func fromPlain(data []byte) (string, error) {
	return string(data), nil
}

func fromPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// fromCSV нормализует CSV: строки разной длины допускаются.
func fromCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// fromXLSX выводит каждый лист в виде CSV.
func fromXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(sheets) > 1 {
			w.Flush()
			fmt.Fprintf(&sb, "# %s\n", sheet)
		}
		if err := w.WriteAll(rows); err != nil {
			return "", fmt.Errorf("write sheet %s: %w", sheet, err)
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// fromDOCX собирает текст абзацев из word/document.xml.
func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("open docx: word/document.xml not found")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
