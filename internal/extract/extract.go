// Package extract pulls plain text out of uploaded course documents.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/studiumlab/studium/internal/domain"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

// Text extracts the full plain text of a document. The format is taken
// from the filename extension and cross-checked against file magic.
func Text(filename string, data []byte) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt", ".md":
		return plainText(data)
	case ".pdf":
		if !bytes.HasPrefix(data, pdfMagic) {
			return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "file is not a valid PDF")
		}
		return pdfText(data)
	case ".docx":
		if !bytes.HasPrefix(data, zipMagic) {
			return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "file is not a valid DOCX")
		}
		return docxText(data)
	case ".pptx":
		if !bytes.HasPrefix(data, zipMagic) {
			return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "file is not a valid PPTX")
		}
		return pptxText(data)
	case ".xlsx":
		if !bytes.HasPrefix(data, zipMagic) {
			return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "file is not a valid XLSX")
		}
		return xlsxText(data)
	default:
		return "", domain.ErrUnsupportedFormat
	}
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "text file is not valid UTF-8")
	}
	return string(data), nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not open PDF", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// docxText walks word/document.xml and joins w:t runs, breaking lines
// at paragraph ends.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not open DOCX archive", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", domain.NewDomainError(domain.ErrCodeExtractionFailed, "DOCX has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not read DOCX document part", err)
	}
	defer rc.Close()

	return wordMLText(rc, "t", "p")
}

// pptxText concatenates the a:t runs of every slide in deck order.
func pptxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not open PPTX archive", err)
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].Name < slides[j].Name })

	var sb strings.Builder
	for _, slide := range slides {
		rc, err := slide.Open()
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not read slide", err)
		}
		text, err := wordMLText(rc, "t", "p")
		rc.Close()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// wordMLText collects character data inside textElem elements of an
// OOXML stream. Paragraphs break lines; table cells are joined with
// tabs and table rows break lines, so tables come out as tab-separated
// rows.
func wordMLText(r io.Reader, textElem, breakElem string) (string, error) {
	decoder := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	cellDepth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "malformed OOXML content", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case textElem:
				inText = true
			case "tc":
				cellDepth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				inText = false
			case "tc":
				cellDepth--
				sb.WriteString("\t")
			case "tr":
				sb.WriteString("\n")
			case breakElem:
				if cellDepth == 0 {
					sb.WriteString("\n")
				}
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// xlsxText renders every sheet as tab-separated rows.
func xlsxText(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not open XLSX workbook", err)
	}
	defer wb.Close()

	var sb strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed, "could not read XLSX sheet", err)
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			if rowEmpty(row) {
				continue
			}
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
