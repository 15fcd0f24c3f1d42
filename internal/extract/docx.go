package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// DocxExtractor reads the paragraphs of a WordprocessingML document.
// Paragraphs, including those inside table cells, are joined by newlines;
// cells of a row are separated by tabs.
type DocxExtractor struct{}

func (DocxExtractor) Extract(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", decodeErr(path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", decodeErr(path, err)
		}
		defer rc.Close()

		text, err := docxText(ctx, rc)
		if err != nil {
			return "", decodeErr(path, err)
		}
		return text, nil
	}
	return "", decodeErr(path, errors.New("missing "+docxBodyPart))
}

// docxText streams document.xml and collects run text. Element names are
// matched on their local part so the w: namespace prefix does not matter.
func docxText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
		inRun  int
		cells  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				// Outside a run, tab is a tab-stop definition in w:pPr.
				if inRun > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if inRun > 0 {
					b.WriteByte('\n')
				}
			case "tr":
				cells = 0
			case "tc":
				if cells > 0 {
					trimTrailingNewline(&b)
					b.WriteByte('\t')
				}
				cells++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func trimTrailingNewline(b *strings.Builder) {
	s := b.String()
	if strings.HasSuffix(s, "\n") {
		s = strings.TrimSuffix(s, "\n")
		b.Reset()
		b.WriteString(s)
	}
}
