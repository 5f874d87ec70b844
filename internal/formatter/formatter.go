// package formatter renders playlist tables to various formats (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Format is an output format accepted by [Export].
type Format string

const (
	Text     Format = "text"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat matches s against the known formats. "txt" and "md" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, csv, markdown or json)", s)
	}
}

// Unknown is rendered in place of a missing value in human-readable formats.
const Unknown = "-"

// Columns are the table headers, in display order.
var Columns = []string{
	"#", "Title", "Artist", "Release", "Length", "Pop", "BPM",
	"Energy", "Dance", "Loud", "Valence", "Acoustic", "Gap",
}

// Cells renders row i of t as one string per [Columns] entry, with missing values left empty.
func Cells(t *models.PlaylistTable, i int) []string {
	r := t.Row(i)
	gaps := t.ArtistSeparation().Gaps
	f := r.Features

	gap := ""
	if i < len(gaps) && gaps[i] > 0 {
		gap = strconv.Itoa(gaps[i])
	}
	length := ""
	if r.Track.DurationMs > 0 {
		length = FormatDuration(r.Track.DurationMs)
	}
	pop := ""
	if r.Track.Identity() != "" {
		pop = strconv.Itoa(r.Track.Popularity)
	}

	return []string{
		strconv.Itoa(r.Track.OriginalPosition + 1),
		r.Track.Title,
		r.Track.ArtistLine(),
		r.ReleaseDate(),
		length,
		pop,
		measure(f.Tempo, 0),
		measure(f.Energy, 0),
		measure(f.Danceability, 0),
		measure(f.Loudness, 1),
		measure(f.Valence, 0),
		measure(f.Acousticness, 0),
		gap,
	}
}

func measure(m models.Measure, prec int) string {
	if !m.Known {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', prec, 64)
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	s := ms / 1000
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func orUnknown(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if c == "" {
			c = Unknown
		}
		out[i] = c
	}
	return out
}

// Export renders t in the given format.
func Export(t *models.PlaylistTable, format Format) ([]byte, error) {
	switch format {
	case Text, "":
		return ExportToText(t)
	case CSV:
		return ExportToCSV(t)
	case Markdown:
		return ExportToMarkdown(t)
	case JSON:
		return ExportToJSON(t)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// ExportToCSV converts a table to CSV with a header row; missing values are empty fields.
func ExportToCSV(t *models.PlaylistTable) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{"ID"}, Columns...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i := range t.Len() {
		record := append([]string{t.Row(i).Track.Identity()}, Cells(t, i)...)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a table to a Markdown document with a pipe table.
func ExportToMarkdown(t *models.PlaylistTable) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title(t))
	fmt.Fprintf(&buf, "**Tracks**: %d\n", t.Len())
	if m := t.ArtistSeparation(); m.MinGap > 0 {
		fmt.Fprintf(&buf, "**Closest artist repeat**: %d (%d adjacent)\n", m.MinGap, m.Adjacent)
	}
	buf.WriteString("\n")

	buf.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat(" --- |", len(Columns)) + "\n")
	for i := range t.Len() {
		cells := orUnknown(Cells(t, i))
		for j, c := range cells {
			cells[j] = strings.ReplaceAll(c, "|", `\|`)
		}
		buf.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a table to a bordered plain text table.
func ExportToText(t *models.PlaylistTable) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", title(t))
	fmt.Fprintf(&buf, "Tracks: %d\n\n", t.Len())

	rows := make([][]string, t.Len())
	for i := range rows {
		rows[i] = orUnknown(Cells(t, i))
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Columns...).
		Rows(rows...)
	buf.WriteString(tbl.String())
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

type jsonExport struct {
	PlaylistID string                  `json:"playlist_id"`
	Name       string                  `json:"name,omitempty"`
	SnapshotID string                  `json:"snapshot_id,omitempty"`
	Separation models.SeparationMetric `json:"artist_separation"`
	Rows       []models.Row            `json:"rows"`
}

// ExportToJSON converts a table to indented JSON, including the artist separation metric.
func ExportToJSON(t *models.PlaylistTable) ([]byte, error) {
	data, err := json.MarshalIndent(jsonExport{
		PlaylistID: t.PlaylistID,
		Name:       t.Name,
		SnapshotID: t.SnapshotID,
		Separation: t.ArtistSeparation(),
		Rows:       t.Rows(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportMoves renders a move plan, one move per line.
func ExportMoves(moves []models.Move) []byte {
	var buf bytes.Buffer
	if len(moves) == 0 {
		buf.WriteString("No moves needed: upstream order already matches.\n")
		return buf.Bytes()
	}
	fmt.Fprintf(&buf, "%d moves:\n", len(moves))
	for i, mv := range moves {
		fmt.Fprintf(&buf, "%d. move %d track(s) from position %d to before %d\n", i+1, mv.RangeLength, mv.RangeStart, mv.InsertBefore)
	}
	return buf.Bytes()
}

// WriteExport renders t and writes it to path, defaulting to {playlist id}.{ext}.
func WriteExport(t *models.PlaylistTable, format Format, path string) (string, error) {
	if path == "" {
		path = t.PlaylistID + "." + extension(format)
	}

	data, err := Export(t, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

func extension(f Format) string {
	switch f {
	case CSV:
		return "csv"
	case Markdown:
		return "md"
	case JSON:
		return "json"
	default:
		return "txt"
	}
}

func title(t *models.PlaylistTable) string {
	if t.Name != "" {
		return t.Name
	}
	return t.PlaylistID
}
