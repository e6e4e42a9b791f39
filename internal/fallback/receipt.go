// Package fallback turns raw text into structured records with regular
// expressions only. It is used when no model is configured or the model
// could not produce a usable payload.
package fallback

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/utils"
)

const UnknownStore = "Unknown Store"

var receiptNoise = []*regexp.Regexp{
	regexp.MustCompile(`^(tax|subtotal|sub-total|total|change|cash|credit|visa|mastercard|amex|debit|balance)`),
	regexp.MustCompile(`^\*+`),
	regexp.MustCompile(`^thank you`),
	regexp.MustCompile(`^www\.`),
	regexp.MustCompile(`^\d{3}[-.\s]\d{3}[-.\s]\d{4}`), // phone
}

var (
	reTrailPrice = regexp.MustCompile(`(\d+\.\d{2})\s*$`)
	reQtyNote    = regexp.MustCompile(`\s+(\d+)\s*@.*$`)
	reSubtotal   = regexp.MustCompile(`^sub-?total`)
	reLeadDigit  = regexp.MustCompile(`^\d`)
)

// ReceiptParser is the deterministic receipt parser.
type ReceiptParser struct {
	// Keywords is evaluated before constants.ReceiptKeywords.
	Keywords []constants.KeywordRule
	Now      utils.Clock
}

// Parse extracts merchant, date, items and totals from receipt text.
func (p ReceiptParser) Parse(text string, learned learn.Mappings) entity.StructuredReceipt {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	out := entity.StructuredReceipt{Merchant: UnknownStore, Items: []entity.LineItem{}}
	for i, l := range lines {
		if i >= 5 {
			break
		}
		if len(l) > 2 && !reLeadDigit.MatchString(l) {
			out.Merchant = l
			break
		}
	}

	date, ok := utils.FindDate(text)
	if !ok {
		date = p.Now.Today()
	}
	out.Date = &date

	var declaredTotal *decimal.Decimal
	for _, line := range lines {
		lower := strings.ToLower(line)
		if isReceiptNoise(lower) {
			switch {
			case strings.HasPrefix(lower, "tax"):
				if v, ok := trailingDecimal(line); ok {
					out.Tax = v
				}
			case strings.Contains(lower, "total") && !reSubtotal.MatchString(lower):
				if v, ok := trailingDecimal(line); ok {
					declaredTotal = &v
				}
			}
			continue
		}

		m := reTrailPrice.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		price, err := decimal.NewFromString(line[m[2]:m[3]])
		if err != nil || !entity.ValidPrice(price) {
			continue
		}
		name := strings.TrimSpace(line[:m[0]])
		qty := decimal.NewFromInt(1)
		if q := reQtyNote.FindStringSubmatch(name); q != nil {
			if n, err := decimal.NewFromString(q[1]); err == nil && n.IsPositive() {
				qty = n
			}
			name = strings.TrimSpace(reQtyNote.ReplaceAllString(name, ""))
		}
		if name == "" {
			continue
		}
		out.Items = append(out.Items, entity.LineItem{
			Name:     name,
			Price:    price,
			Quantity: qty,
			Category: p.Category(name, learned),
		})
	}

	if declaredTotal != nil && !declaredTotal.IsZero() {
		out.Total = *declaredTotal
	} else {
		out.Total = out.ItemsTotal()
	}
	return out
}

// Category resolves an item name: learned mapping, then keyword tables,
// then Uncategorized.
func (p ReceiptParser) Category(name string, learned learn.Mappings) string {
	if c, ok := learned.Match(name); ok {
		return c
	}
	if c, ok := constants.MatchKeyword(p.Keywords, name); ok {
		return string(c)
	}
	if c, ok := constants.MatchKeyword(constants.ReceiptKeywords, name); ok {
		return string(c)
	}
	return string(constants.Uncategorized)
}

func isReceiptNoise(lower string) bool {
	for _, re := range receiptNoise {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// trailingDecimal reads the amount at the end of a line, so a rate such
// as "TAX 8.25% 0.33" yields 0.33.
func trailingDecimal(line string) (decimal.Decimal, bool) {
	m := reTrailPrice.FindStringSubmatch(line)
	if m == nil {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(m[1])
	return v, err == nil
}
