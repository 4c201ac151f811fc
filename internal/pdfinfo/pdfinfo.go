// Package pdfinfo reads page geometry and text from a PDF without rendering it.
package pdfinfo

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docconv/internal/domain"
)

// Page describes one page. Sizes are in points.
type Page struct {
	Number int
	Width  float64
	Height float64
	Text   string
}

// Info is the result of Inspect.
type Info struct {
	Size  int
	Pages []Page
}

// Inspect parses data and collects per-page size and plain text. Pages whose
// text cannot be extracted are reported with empty Text.
func Inspect(data []byte) (*Info, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, domain.ErrNotPDF
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	info := &Info{Size: len(data)}
	total := r.NumPage()
	for n := 1; n <= total; n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			continue
		}
		page := Page{Number: n}
		page.Width, page.Height = mediaBox(p.V)

		text, err := p.GetPlainText(nil)
		if err == nil {
			page.Text = strings.TrimSpace(text)
		}
		info.Pages = append(info.Pages, page)
	}
	return info, nil
}

// mediaBox returns the page size, following inherited MediaBox entries up
// the page tree.
func mediaBox(v pdf.Value) (width, height float64) {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			return box.Index(2).Float64() - box.Index(0).Float64(),
				box.Index(3).Float64() - box.Index(1).Float64()
		}
		v = v.Key("Parent")
	}
	return 0, 0
}
