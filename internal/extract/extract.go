// Package extract turns uploaded or scanned files into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
)

const (
	FileTypeText = ".txt"
	FileTypePDF  = ".pdf"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}"'/]`)
)

// SupportedFileTypes lists the extensions Extract accepts.
func SupportedFileTypes() []string {
	return []string{FileTypeText, FileTypePDF}
}

// IsSupported reports whether fileType (an extension, with or without the dot) can be extracted.
func IsSupported(fileType string) bool {
	switch normalizeType(fileType) {
	case FileTypeText, FileTypePDF:
		return true
	}
	return false
}

// Extract returns the text of content interpreted as fileType.
func Extract(ctx context.Context, content []byte, fileType string) (string, error) {
	switch normalizeType(fileType) {
	case FileTypeText:
		return extractText(content)
	case FileTypePDF:
		return extractPDF(ctx, content)
	default:
		return "", &domain.UnsupportedFormatError{FileType: fileType}
	}
}

// extractText decodes UTF-8 and falls back to Latin-1 for invalid input.
func extractText(content []byte) (string, error) {
	if utf8.Valid(content) {
		return strings.TrimSpace(string(content)), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("failed to decode text as latin-1: %w", err)
	}
	return strings.TrimSpace(string(decoded)), nil
}

// extractPDF joins the text of every readable page with blank lines.
// Pages that fail to extract are logged and skipped.
func extractPDF(ctx context.Context, content []byte) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := pageText(reader, i)
		if err != nil {
			logger.WarnContext(ctx, "failed to extract pdf page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

// pageText extracts one page. The pdf library panics on some malformed
// content streams, so panics are turned into errors.
func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// CleanText collapses whitespace runs to single spaces and strips characters
// outside letters, digits, whitespace and common punctuation.
func CleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = disallowedPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func normalizeType(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	if t != "" && !strings.HasPrefix(t, ".") {
		t = "." + t
	}
	return t
}
