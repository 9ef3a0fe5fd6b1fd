package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-ocr/internal/scanning"
)

type column int

const (
	colQuantity column = iota
	colDescription
	colUnitPrice
	colAmount
)

// columnAliases lists the header words of each column, Spanish first.
// Order matters: a header word is claimed by the first column matching it.
var columnAliases = []struct {
	col     column
	aliases []string
}{
	{colQuantity, []string{"cant", "cantidad", "uds", "qty", "quantity"}},
	{colDescription, []string{"descripción", "descripcion", "producto", "servicio", "concepto", "articulo", "artículo", "description", "item"}},
	{colUnitPrice, []string{"p.unit", "p/u", "unitario", "precio", "unit", "price"}},
	{colAmount, []string{"importe", "total", "subtotal", "valor", "amount"}},
}

var (
	totalKeyword    = regexp.MustCompile(`(?i)\b(total|amount due|a pagar)\b`)
	subtotalKeyword = regexp.MustCompile(`(?i)\bsub-?total\b`)
	summaryKeyword  = regexp.MustCompile(`(?i)\b(sub-?total|iva|igv|impuestos?|tax|vat|descuento|discount|base imponible|propina|tip)\b`)
)

// isTotalLine reports whether a line states the invoice total. "Total IVA
// incluido" is a total, "Subtotal" and "IVA total" are not.
func isTotalLine(text string) bool {
	if !totalKeyword.MatchString(text) || subtotalKeyword.MatchString(text) {
		return false
	}
	fields := strings.Fields(text)
	return len(fields) > 0 && !summaryKeyword.MatchString(fields[0])
}

type line struct {
	words []scanning.Word
}

func (l line) texts() []string {
	texts := make([]string, len(l.words))
	for i, w := range l.words {
		texts[i] = w.Text
	}
	return texts
}

func (l line) text() string {
	return strings.Join(l.texts(), " ")
}

// groupLines drops low confidence words and groups the rest into lines.
// A word joins the current line when its top is within tolerance of the
// previous word's top.
func groupLines(words []scanning.Word, minConfidence float64, tolerance int) []line {
	kept := make([]scanning.Word, 0, len(words))
	for _, w := range words {
		if w.Confidence < minConfidence || strings.TrimSpace(w.Text) == "" {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Top != kept[j].Top {
			return kept[i].Top < kept[j].Top
		}
		return kept[i].Left < kept[j].Left
	})

	var lines []line
	current := line{words: []scanning.Word{kept[0]}}
	for _, w := range kept[1:] {
		prev := current.words[len(current.words)-1]
		if abs(w.Top-prev.Top) < tolerance {
			current.words = append(current.words, w)
			continue
		}
		lines = append(lines, current)
		current = line{words: []scanning.Word{w}}
	}
	lines = append(lines, current)

	for _, l := range lines {
		sort.SliceStable(l.words, func(i, j int) bool { return l.words[i].Left < l.words[j].Left })
	}
	return lines
}

// detectColumns returns the left offset of each column named in a header
// line. A header needs an amount column and at least one other, and must not
// carry amounts itself.
func detectColumns(l line) map[column]int {
	if len(amountsIn(l.texts())) > 0 {
		return nil
	}

	columns := make(map[column]int)
	claimed := make(map[int]bool)
	for _, ca := range columnAliases {
		for i, w := range l.words {
			if claimed[i] {
				continue
			}
			lower := strings.ToLower(w.Text)
			if containsAny(lower, ca.aliases) {
				columns[ca.col] = w.Left
				claimed[i] = true
				break
			}
		}
	}

	if _, ok := columns[colAmount]; !ok || len(columns) < 2 {
		return nil
	}
	return columns
}

// parseItem assigns each word to the nearest column and builds a line item.
// Lines without a description or a readable amount are not items.
func parseItem(l line, columns map[column]int) (LineItem, bool) {
	cells := make(map[column][]string)
	for _, w := range l.words {
		nearest, best := colDescription, -1
		for col, left := range columns {
			d := abs(w.Left - left)
			if best == -1 || d < best || (d == best && col < nearest) {
				nearest, best = col, d
			}
		}
		cells[nearest] = append(cells[nearest], w.Text)
	}

	description := strings.TrimSpace(strings.Join(cells[colDescription], " "))
	if description == "" || len(cells[colAmount]) == 0 {
		return LineItem{}, false
	}
	amount, ok := ParseAmount(cells[colAmount][0])
	if !ok {
		return LineItem{}, false
	}

	item := LineItem{
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   amount,
		Amount:      amount,
	}
	if q := cells[colQuantity]; len(q) > 0 {
		if qty, ok := ParseAmount(q[0]); ok {
			item.Quantity = qty
		}
	}
	if p := cells[colUnitPrice]; len(p) > 0 {
		if price, ok := ParseAmount(p[0]); ok {
			item.UnitPrice = price
		}
	}
	return item, true
}

type layoutState int

const (
	searchingHeader layoutState = iota
	readingItems
	afterItems
)

// readLayout walks the lines top to bottom collecting the detail table and the
// stated total. The last total line wins.
func readLayout(lines []line) ([]LineItem, decimal.NullDecimal) {
	var (
		items   []LineItem
		total   decimal.NullDecimal
		columns map[column]int
		state   = searchingHeader
	)

	for _, l := range lines {
		text := l.text()

		if state == searchingHeader {
			if cols := detectColumns(l); cols != nil {
				columns = cols
				state = readingItems
				continue
			}
		}

		if isTotalLine(text) {
			if amounts := amountsIn(l.texts()); len(amounts) > 0 {
				total = decimal.NewNullDecimal(amounts[len(amounts)-1])
				state = afterItems
				continue
			}
		}

		if state != readingItems {
			continue
		}
		if summaryKeyword.MatchString(text) {
			state = afterItems
			continue
		}
		// residual header rows
		if detectColumns(l) != nil {
			continue
		}
		if item, ok := parseItem(l, columns); ok {
			items = append(items, item)
		}
	}

	return items, total
}

// totalFromText finds the stated total in plain text, used when no positioned
// words are available or the layout pass found none
func totalFromText(textLines []string) decimal.NullDecimal {
	var total decimal.NullDecimal
	for _, l := range textLines {
		if !isTotalLine(l) {
			continue
		}
		if amounts := amountsIn(strings.Fields(l)); len(amounts) > 0 {
			total = decimal.NewNullDecimal(amounts[len(amounts)-1])
		}
	}
	return total
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
