package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
)

type encoder func(ctx context.Context, w io.Writer, records []Record) error

func encoderFor(f Format) (encoder, error) {
	switch f {
	case FormatJSON:
		return encodeJSON, nil
	case FormatCSV:
		return encodeCSV, nil
	case FormatPDF:
		return encodePDF, nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// encodeJSON writes an indented array, one object per record
func encodeJSON(ctx context.Context, w io.Writer, records []Record) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.MarshalIndent(r, "  ", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entry %d: %w", r.ID, err)
		}
		if _, err := io.WriteString(w, "  "); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		sep := ",\n"
		if i == len(records)-1 {
			sep = "\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "]\n")
	return err
}

func encodeCSV(ctx context.Context, w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordKeys); err != nil {
		return err
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(csvRow(r)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRow(r Record) []string {
	media := make([]string, 0, len(r.Media))
	for _, m := range r.Media {
		media = append(media, m.Type+":"+m.Path)
	}

	var prompt, location, weather, decryptErr string
	if r.Prompt != nil {
		prompt = r.Prompt.Title
	}
	if r.Location != nil {
		location = fmt.Sprintf("%s (%g,%g)", r.Location.Name, r.Location.Latitude, r.Location.Longitude)
	}
	if r.Weather != nil {
		weather = fmt.Sprintf("%gC %s", r.Weather.TemperatureC, r.Weather.Condition)
	}
	if r.DecryptionError != nil {
		decryptErr = *r.DecryptionError
	}

	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Title,
		r.Content,
		r.CreatedAt,
		r.UpdatedAt,
		r.Mood,
		r.MoodLevel,
		strings.Join(r.Tags, ListSeparator),
		strings.Join(media, ListSeparator),
		strings.Join(r.SecondaryEmotions, ListSeparator),
		strings.Join(r.Factors, ListSeparator),
		prompt,
		strconv.FormatBool(r.Pinned),
		strconv.FormatBool(r.Favorite),
		location,
		weather,
		decryptErr,
	}
}

// encodePDF renders an A4 document with one section per calendar day
func encodePDF(ctx context.Context, w io.Writer, records []Record) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Journal export", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	if len(records) == 0 {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 10, "No entries in this range.", "", 1, "L", false, 0, "")
	}

	day := ""
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if d := dateOf(r.CreatedAt); d != day {
			day = d
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "B", 14)
			pdf.SetTextColor(40, 40, 120)
			pdf.CellFormat(0, 10, day, "B", 1, "L", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, tr(r.Title), "", "L", false)

		pdf.SetFont("Helvetica", "I", 9)
		meta := fmt.Sprintf("%s  |  %s (%s)", timeOf(r.CreatedAt), r.Mood, r.MoodLevel)
		if len(r.Tags) > 0 {
			meta += "  |  " + strings.Join(r.Tags, ", ")
		}
		pdf.MultiCell(0, 5, tr(meta), "", "L", false)

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(r.Content), "", "L", false)

		if len(r.Media) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 5, fmt.Sprintf("%d attachment(s)", len(r.Media)), "", "L", false)
		}
		pdf.Ln(3)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

// dateOf and timeOf split an RFC 3339 timestamp for display
func dateOf(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

func timeOf(ts string) string {
	if len(ts) < 16 {
		return ""
	}
	return ts[11:16]
}
