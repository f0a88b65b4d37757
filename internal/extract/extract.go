// Package extract pulls plain text out of uploaded context documents.
package extract

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ideaforge-io/ideaforge/internal/common"
)

var extraneousWhitespace = regexp.MustCompile(`[ \t\r\f]+`)

// File extracts plain text from the uploaded document saved at path. The
// original filename decides the format. Extraction is best-effort: any
// failure returns the empty string, and the temp file is always removed.
func File(path, filename string) string {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			common.Logger().Warn("extract: temp file cleanup failed", "path", path, "error", err)
		}
	}()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return pdfText(path)
	case ".txt", ".md", ".csv", ".text", ".log":
		return plainText(path)
	default:
		common.Logger().Warn("extract: unsupported file type skipped", "filename", filename)
		return ""
	}
}

func plainText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		common.Logger().Warn("extract: read failed", "path", path, "error", err)
		return ""
	}
	return normalize(string(data))
}

func pdfText(path string) string {
	file, reader, err := pdf.Open(path)
	if err != nil {
		common.Logger().Warn("extract: pdf open failed", "path", path, "error", err)
		return ""
	}
	defer file.Close()
	content, err := reader.GetPlainText()
	if err != nil {
		common.Logger().Warn("extract: pdf text extraction failed", "path", path, "error", err)
		return ""
	}
	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		common.Logger().Warn("extract: pdf read failed", "path", path, "error", err)
		return ""
	}
	return normalize(b.String())
}

// normalize collapses runs of horizontal whitespace but keeps line breaks:
// the prompt builder scans individual lines for failure indicators.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(extraneousWhitespace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
