package pdf

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ScanReport summarizes whether a PDF carries a usable text layer or is a
// scan that needs OCR.
type ScanReport struct {
	PageCount    int
	CharsPerPage float64
	ImagePages   int
	Scanned      bool
	Reason       string
}

// Analyze inspects the embedded text layer and image objects of a PDF and
// decides whether OCR is needed. Scans come in two flavors: pure image
// pages with no text at all, and pages with a broken text layer from a
// previous bad OCR pass, which looks like text but reads as garbage.
func Analyze(path string) (ScanReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScanReport{}, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return ScanReport{}, err
	}

	report := ScanReport{PageCount: ctx.PageCount}

	var allText strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		allText.WriteString(pageText(ctx, pageNr))
		allText.WriteByte('\n')
		if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
			report.ImagePages++
		}
	}

	text := strings.TrimSpace(allText.String())
	if ctx.PageCount > 0 {
		report.CharsPerPage = float64(len([]rune(text))) / float64(ctx.PageCount)
	}

	report.Scanned, report.Reason = judge(text, report)
	return report, nil
}

func judge(text string, r ScanReport) (bool, string) {
	if r.CharsPerPage < 500 {
		if r.ImagePages > 0 {
			return true, "pages are images with almost no embedded text"
		}
		return true, "document has almost no embedded text"
	}

	runes := []rune(text)
	var spaces, alpha, total int
	for _, c := range runes {
		total++
		switch {
		case c == ' ':
			spaces++
		case unicode.IsLetter(c):
			alpha++
		}
	}
	if total == 0 {
		return true, "document has no embedded text"
	}

	spaceRatio := float64(spaces) / float64(total)
	alphaRatio := float64(alpha) / float64(total)
	words := strings.Fields(text)

	singleChar := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			singleChar++
		}
	}

	switch {
	case spaceRatio < 0.05 || spaceRatio > 0.40:
		return true, "text layer has implausible spacing, likely damaged OCR"
	case alphaRatio < 0.40:
		return true, "text layer is mostly non-letters, likely damaged OCR"
	case len(words) > 20 && float64(singleChar)/float64(len(words)) > 0.20:
		return true, "text layer is fragmented into single characters"
	case len(words) < 150 && r.PageCount > 1:
		return true, "multi-page document with very few words"
	}

	return false, "usable embedded text layer"
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(data)
}

// pdfStringRe matches PDF literal strings: (text)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream pulls the show-text operands (Tj and TJ) out of a
// raw content stream. This is not a full PDF text extractor; the scan check
// only needs enough of the text layer to judge its quality.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if !bytes.HasSuffix(line, []byte("Tj")) && !bytes.HasSuffix(line, []byte("TJ")) {
			continue
		}
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			sb.Write(decodeLiteral(m[1]))
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func decodeLiteral(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r', '\\', '(', ')':
			out = append(out, raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				out = append(out, byte(val))
			} else {
				out = append(out, raw[i])
			}
		}
	}
	return out
}
