package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guillermoBallester/asksql/internal/core/domain"
	"github.com/guillermoBallester/asksql/internal/core/port"
	"github.com/guillermoBallester/asksql/internal/core/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// maxCellWidth keeps wide text columns from blowing up the table.
const maxCellWidth = 60

type renderer struct {
	w      io.Writer
	format string
}

type resultJSON struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

func newResultJSON(res *domain.ResultSet) *resultJSON {
	if res == nil {
		return nil
	}
	cols := res.Columns
	if cols == nil {
		cols = []string{}
	}
	return &resultJSON{Columns: cols, Rows: res.Records(), RowCount: res.Len(), Truncated: res.Truncated}
}

func (r renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r renderer) result(res *domain.ResultSet) error {
	if r.format == outputJSON {
		return r.json(newResultJSON(res))
	}
	r.resultTable(res)
	return nil
}

func (r renderer) resultTable(res *domain.ResultSet) {
	rows := make([][]string, 0, res.Len())
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		rows = append(rows, cells)
	}
	fmt.Fprintln(r.w, newTable(res.Columns, rows))

	footer := fmt.Sprintf("%d row(s)", res.Len())
	if res.Truncated {
		footer += ", truncated at the row limit"
	}
	fmt.Fprintln(r.w, noteStyle.Render(footer))
}

func (r renderer) answer(ans *service.Answer, explanation string) error {
	if r.format == outputJSON {
		return r.json(struct {
			Question    string      `json:"question"`
			SQL         string      `json:"sql"`
			Notes       []string    `json:"notes,omitempty"`
			Explanation string      `json:"explanation,omitempty"`
			Result      *resultJSON `json:"result,omitempty"`
		}{ans.Question, ans.SQL, ans.Notes, explanation, newResultJSON(ans.Result)})
	}

	r.prepared(&ans.Prepared)
	if explanation != "" {
		if err := r.explanation(explanation); err != nil {
			return err
		}
	}
	if ans.Result != nil {
		r.resultTable(ans.Result)
	}
	return nil
}

func (r renderer) prepared(p *service.Prepared) {
	fmt.Fprintln(r.w, labelStyle.Render("question:"), p.Question)
	fmt.Fprintln(r.w, labelStyle.Render("sql:"), p.SQL)
	for _, n := range p.Notes {
		fmt.Fprintln(r.w, noteStyle.Render("note: "+n))
	}
	fmt.Fprintln(r.w)
}

// explanation renders model output as markdown, falling back to plain text.
func (r renderer) explanation(text string) error {
	if r.format == outputJSON {
		return r.json(map[string]string{"explanation": text})
	}
	out, err := renderMarkdown(text)
	if err != nil {
		out = text + "\n"
	}
	_, err = fmt.Fprint(r.w, out)
	return err
}

func renderMarkdown(text string) (string, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return tr.Render(text)
}

func (r renderer) tables(tables []port.TableInfo) error {
	if r.format == outputJSON {
		if tables == nil {
			tables = []port.TableInfo{}
		}
		return r.json(tables)
	}
	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		rows = append(rows, []string{t.Name, t.Description})
	}
	fmt.Fprintln(r.w, newTable([]string{"table", "description"}, rows))
	return nil
}

func (r renderer) tableDetail(d *port.TableDetail) error {
	if r.format == outputJSON {
		return r.json(d)
	}
	fmt.Fprintln(r.w, labelStyle.Render(d.Name))
	if d.Description != "" {
		fmt.Fprintln(r.w, noteStyle.Render(d.Description))
	}
	rows := make([][]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		rows = append(rows, []string{c.Name, c.DataType, strconv.FormatBool(c.IsNullable), c.Description, c.Mask})
	}
	fmt.Fprintln(r.w, newTable([]string{"column", "type", "nullable", "description", "mask"}, rows))
	return nil
}

func (r renderer) profile(p *port.TableProfile) error {
	if r.format == outputJSON {
		return r.json(p)
	}
	fmt.Fprintf(r.w, "%s %s\n", labelStyle.Render(p.Name), noteStyle.Render(fmt.Sprintf("(%d rows)", p.RowCount)))

	rows := make([][]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		rows = append(rows, []string{
			c.Name,
			c.DataType,
			strconv.FormatFloat(c.NullFraction*100, 'f', 1, 64) + "%",
			strconv.FormatInt(c.DistinctCount, 10),
			string(c.Cardinality),
			c.MinValue,
			c.MaxValue,
		})
	}
	fmt.Fprintln(r.w, newTable([]string{"column", "type", "nulls", "distinct", "cardinality", "min", "max"}, rows))

	for _, fk := range p.InferredFKs {
		fmt.Fprintln(r.w, noteStyle.Render(fmt.Sprintf("%s -> %s.%s (%s confidence): %s",
			fk.ColumnName, fk.ReferencedTable, fk.ReferencedColumn, fk.Confidence, fk.Reason)))
	}
	return nil
}

func (r renderer) savedList(qs []domain.SavedQuery) error {
	if r.format == outputJSON {
		if qs == nil {
			qs = []domain.SavedQuery{}
		}
		return r.json(qs)
	}
	rows := make([][]string, 0, len(qs))
	for _, q := range qs {
		rows = append(rows, []string{
			strconv.FormatInt(q.ID, 10),
			q.Name,
			q.Tag,
			q.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(r.w, newTable([]string{"id", "name", "tag", "created"}, rows))
	return nil
}

func (r renderer) saved(q *domain.SavedQuery) error {
	if r.format == outputJSON {
		return r.json(q)
	}
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintln(r.w, labelStyle.Render(label+":"), value)
		}
	}
	field("id", strconv.FormatInt(q.ID, 10))
	field("name", q.Name)
	field("question", q.Question)
	field("sql", q.SQL)
	field("tag", q.Tag)
	field("notes", q.Notes)
	field("created", q.CreatedAt.Local().Format(time.DateTime))
	return nil
}

func (r renderer) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r.format == outputJSON {
		return r.json(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(r.w, msg)
	return err
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// formatValue renders one result cell. NULL is spelled out so it is not
// confused with an empty string.
func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		s = val
	case []byte:
		s = string(val)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		s = val.Format(time.RFC3339)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-1]) + "…"
	}
	return s
}
