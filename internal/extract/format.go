package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the declared type of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"
	mimeZIP  = "application/zip"
)

// ParseFormat maps a format tag, file extension or MIME type onto a Format.
func ParseFormat(declared string) (Format, error) {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	clean = strings.TrimPrefix(clean, ".")
	switch clean {
	case "pdf", mimePDF:
		return FormatPDF, nil
	case "docx", mimeDOCX:
		return FormatDOCX, nil
	case "txt", "text", mimeTXT:
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, declared)
	}
}

// DetectFormat resolves the format of an upload from its file name first and
// its content type second. Generic zip uploads are inspected for a Word part.
func DetectFormat(fileName, contentType string, data []byte) (Format, error) {
	if ext := filepath.Ext(strings.TrimSpace(fileName)); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if clean == mimeZIP || clean == "application/octet-stream" {
		if isDOCX(data) {
			return FormatDOCX, nil
		}
	}
	if clean != "" {
		if f, err := ParseFormat(clean); err == nil {
			return f, nil
		}
	}
	label := contentType
	if label == "" {
		label = fileName
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, label)
}

func isDOCX(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
