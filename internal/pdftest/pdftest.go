// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// Page is one page of a generated document, sized in points.
type Page struct {
	Width  int
	Height int
	Text   string
}

// Build returns a PDF with one page per entry, each showing its Text in Helvetica.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int

	// objects: 1 catalog, 2 pages, 3 font, then page/content pairs
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, p := range pages {
		content := fmt.Sprintf("BT /F1 24 Tf 20 %d Td (%s) Tj ET", p.Height/2, p.Text)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>",
			p.Width, p.Height, 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Pages returns n pages whose widths grow with the page number, so page
// order can be recovered from rendered image sizes.
func Pages(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: 200 + 50*i, Height: 300, Text: fmt.Sprintf("Page %d", i+1)}
	}
	return pages
}
