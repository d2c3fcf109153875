// Package ingest turns uploaded paper files into plain text the section
// parser can work with.
package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract converts file content to text based on the filename extension.
// Supported formats are .pdf, .xml (PubMed Central JATS) and .txt.
func Extract(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ExtractPDF(content)
	case ".xml":
		return ExtractXML(content)
	case ".txt":
		return string(content), nil
	default:
		return "", fmt.Errorf("unsupported file format %q: expected .pdf, .xml or .txt", filepath.Ext(filename))
	}
}

// Load reads a file from disk and extracts its text.
func Load(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Extract(path, content)
}

// ExtractPDF pulls plain text out of a PDF, page by page. Pages that fail
// to extract are skipped; a document with no extractable text is an error.
func ExtractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	numPages := pdfReader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return b.String(), nil
}
