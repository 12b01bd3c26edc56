package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned when the declared format is not pdf, docx or txt.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtractionFailure is returned when a document is corrupt or unreadable.
	ErrExtractionFailure = errors.New("extraction failure")
)

// Document is an uploaded file together with its declared format.
type Document struct {
	Data     []byte
	Format   Format
	FileName string
}

// Extract converts a document into UTF-8 text. It works entirely in memory.
// Libraries used: github.com/ledongthuc/pdf (PDF); DOCX is read as OOXML via archive/zip.
func Extract(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch doc.Format {
	case FormatPDF:
		return extractPDF(doc.Data)
	case FormatDOCX:
		return extractDOCX(doc.Data)
	case FormatTXT:
		return extractTXT(doc.Data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(doc.Format))
	}
}

func failure(kind string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExtractionFailure, kind, err)
}

func extractTXT(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", failure("txt", errors.New("invalid utf-8 byte sequence"))
	}
	return string(data), nil
}

// extractPDF reads pages in order; pages without a text layer contribute nothing.
func extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", failure("pdf", errors.New("empty pdf data"))
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = failure("pdf", fmt.Errorf("reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", failure("pdf", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		plain, err := page.GetPlainText(nil)
		if err != nil {
			return "", failure("pdf", fmt.Errorf("page %d: %w", i, err))
		}
		plain = strings.TrimSpace(normalizeNewlines(plain))
		if plain == "" {
			continue
		}
		pages = append(pages, plain)
	}
	return strings.Join(pages, "\n"), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", failure("docx", errors.New("empty docx data"))
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", failure("docx", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", failure("docx", errors.New("document.xml file not found"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", failure("docx", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", failure("docx", err)
	}
	return strings.TrimRight(strings.Join(paragraphs, "\n"), " \t\n"), nil
}

// docxParagraphs returns the text of every w:p in the main document part,
// table cells included. Text boxes nested in a paragraph are emitted before
// the paragraph that anchors them. Fallback markup of alternate content is
// skipped so text boxes are not read twice. Paragraph properties are skipped
// too, so only run-level w:tab elements become tabs.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paragraphs []string
		open       []*strings.Builder
		inText     int
		skipDepth  int
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if skipDepth > 0 {
				skipDepth++
				continue
			}
			switch t.Name.Local {
			case "Fallback", "pPr":
				// pPr holds tab-stop definitions (w:tabs/w:tab), not text.
				skipDepth = 1
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText++
			case "tab":
				if len(open) > 0 {
					open[len(open)-1].WriteString("\t")
				}
			case "br", "cr":
				if len(open) > 0 {
					open[len(open)-1].WriteString("\n")
				}
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			switch t.Name.Local {
			case "p":
				if len(open) == 0 {
					continue
				}
				last := open[len(open)-1]
				open = open[:len(open)-1]
				paragraphs = append(paragraphs, last.String())
			case "t":
				if inText > 0 {
					inText--
				}
			}
		case xml.CharData:
			if skipDepth > 0 || inText == 0 || len(open) == 0 {
				continue
			}
			open[len(open)-1].Write(t)
		}
	}
	return paragraphs, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
