package util

import (
	"errors"
	"path"
	"strings"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// ReportFileName derives a download name such as "msa-risk-report.xlsx" from
// the analysed document name. Unusable names fall back to "contract".
func ReportFileName(docName, ext string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(docName, "\\", "/")), path.Ext(docName))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	clean := strings.Trim(b.String(), "-_")
	if clean == "" {
		clean = "contract"
	}
	return clean + "-risk-report." + strings.TrimPrefix(ext, ".")
}
