package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"kmle-tutor/backend/internal/models"
	"kmle-tutor/backend/internal/session"

	"github.com/go-pdf/fpdf"
)

// ErrUnavailable signals that export cannot run because the font resource is
// missing. The caller degrades to a disabled export affordance; nothing
// crashes.
var ErrUnavailable = errors.New("export unavailable: font resource missing")

// Formatter renders a transcript selection into a paginated PDF.
type Formatter struct {
	productName string
	productTag  string
	fontPath    string
	fontFamily  string
}

// NewFormatter creates a PDF formatter. The font must cover Hangul, which
// the built-in core fonts do not.
func NewFormatter(productName, productTag, fontPath, fontFamily string) *Formatter {
	return &Formatter{
		productName: productName,
		productTag:  productTag,
		fontPath:    fontPath,
		fontFamily:  fontFamily,
	}
}

// Available reports whether the font resource exists.
func (f *Formatter) Available() bool {
	info, err := os.Stat(f.fontPath)
	return err == nil && !info.IsDir()
}

// FileName encodes product tag, subject prefix and username.
func (f *Formatter) FileName(subject models.Subject, username string) string {
	return fmt.Sprintf("%s_%s_%s.pdf", f.productTag, subject.ID, username)
}

// Render produces the PDF document for the entries whose inclusion flag is
// set. Entry order is preserved.
func (f *Formatter) Render(username string, subject models.Subject, entries []session.Entry) ([]byte, error) {
	if !f.Available() {
		return nil, ErrUnavailable
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8Font(f.fontFamily, "", f.fontPath)
	pdf.AddUTF8Font(f.fontFamily, "B", f.fontPath)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Title block
	pdf.SetFont(f.fontFamily, "B", 16)
	pdf.CellFormat(0, 10, f.productName, "", 1, "C", false, 0, "")
	pdf.SetFont(f.fontFamily, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s  ·  %s  ·  %s",
		username, subject.Name, time.Now().Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, entry := range entries {
		if !entry.Included {
			continue
		}

		label := "Me"
		if entry.Role == models.RoleAssistant {
			label = "Tutor"
		}

		pdf.SetFont(f.fontFamily, "B", 11)
		pdf.CellFormat(0, 7, label, "", 1, "L", false, 0, "")
		pdf.SetFont(f.fontFamily, "", 10)
		pdf.MultiCell(0, 5, StripMarkup(entry.Content), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf render failed: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	htmlTag       = regexp.MustCompile(`<[^>]*>`)
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingMarker = regexp.MustCompile(`(?m)^#{1,6}\s*`)
)

// StripMarkup reduces message content to plain text: HTML tags removed,
// markdown links collapsed to their label, emphasis markers dropped.
func StripMarkup(content string) string {
	out := htmlTag.ReplaceAllString(content, "")
	out = markdownLink.ReplaceAllString(out, "$1")
	out = headingMarker.ReplaceAllString(out, "")
	for _, marker := range []string{"**", "__", "*", "_", "`"} {
		out = strings.ReplaceAll(out, marker, "")
	}
	return strings.TrimSpace(out)
}
