package fallback

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/utils"
)

// KnownSubscriptions is used when no subscription keywords are configured.
var KnownSubscriptions = []string{
	"NETFLIX", "SPOTIFY", "HULU", "DISNEY+", "HBO", "AMAZON PRIME", "APPLE.COM",
	"GOOGLE ONE", "MICROSOFT", "GYM", "PLANET FITNESS", "CRUNCH", "DROPBOX",
	"ADOBE", "ZOOM", "SLACK",
}

var reTxLine = regexp.MustCompile(`(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+(.+?)\s+(-?\(?\$?[\d,]+\.\d{2}\)?)\s*$`)

var bankNoise = []*regexp.Regexp{
	regexp.MustCompile(`^(balance|beginning balance|ending balance|account number)`),
	regexp.MustCompile(`^(page \d+|continued|statement period)`),
	regexp.MustCompile(`^\d{10,}`), // account or routing number
}

// column roles resolved from CSV headers
type role int

const (
	roleDate role = iota
	roleDescription
	roleAmount
	roleDebit
	roleCredit
)

// csvAliases lists, per role, header names in priority order.
var csvAliases = []struct {
	role    role
	aliases []string
}{
	{roleDate, []string{"date", "transaction date", "trans date", "posted date", "posting date"}},
	{roleDescription, []string{"description", "memo", "payee", "merchant", "transaction", "details", "name"}},
	{roleAmount, []string{"amount", "transaction amount", "amt"}},
	{roleDebit, []string{"debit", "withdrawal", "paid out", "charges"}},
	{roleCredit, []string{"credit", "deposit", "paid in", "payments"}},
}

// BankParser is the deterministic statement parser.
type BankParser struct {
	// SubscriptionKeywords overrides KnownSubscriptions when non-empty.
	SubscriptionKeywords []string
	Now                  utils.Clock
}

// ParseFile dispatches on the file type: CSV exports go through the column
// mapper, everything else through the line scanner.
func (p BankParser) ParseFile(text, ext, contentType string) entity.StructuredStatement {
	var txs []entity.Transaction
	if constants.FormatFromHint(ext, contentType) == constants.CSV {
		txs = p.ParseCSV(text)
	} else {
		txs = p.ParseText(text)
	}
	return entity.StructuredStatement{BankName: entity.UnknownBank, Transactions: txs}
}

// ParseText scans each line for "<date> <description> <amount>".
func (p BankParser) ParseText(text string) []entity.Transaction {
	out := []entity.Transaction{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		m := reTxLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if desc == "" || isBankNoise(desc) {
			continue
		}
		date, ok := utils.ParseTxDate(m[1], p.Now)
		if !ok {
			date = p.Now.Today()
		}
		out = append(out, p.transaction(date, desc, utils.ParseAmount(m[3]), strings.TrimSpace(m[0])))
	}
	return out
}

// ParseCSV maps a bank export onto transactions. Headers it cannot map
// yield no transactions.
func (p BankParser) ParseCSV(content string) []entity.Transaction {
	out := []entity.Transaction{}
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(strings.TrimSpace(content), "\ufeff")))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return out
	}
	cols, ok := resolveColumns(header)
	if !ok {
		return out
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// one malformed row must not drop the rest
			continue
		}
		if blankRecord(rec) {
			continue
		}
		desc := cell(rec, cols, roleDescription)
		if desc == "" || isBankNoise(desc) {
			continue
		}
		date, ok := utils.ParseTxDate(cell(rec, cols, roleDate), p.Now)
		if !ok {
			date = p.Now.Today()
		}

		var amount decimal.Decimal
		if _, has := cols[roleAmount]; has {
			amount = utils.ParseAmount(cell(rec, cols, roleAmount))
		} else {
			debit := utils.ParseAmount(cell(rec, cols, roleDebit))
			credit := utils.ParseAmount(cell(rec, cols, roleCredit))
			if !debit.IsZero() {
				amount = credit.Sub(debit.Abs())
			} else {
				amount = credit
			}
		}
		out = append(out, p.transaction(date, desc, amount, strings.Join(rec, ",")))
	}
	return out
}

func (p BankParser) transaction(date entity.Date, desc string, amount decimal.Decimal, raw string) entity.Transaction {
	amount = utils.Money(amount)
	category := constants.Other
	if c, ok := constants.MatchKeyword(constants.StatementKeywords, desc); ok {
		category = c
	}
	return entity.Transaction{
		Date:           date,
		Description:    desc,
		Amount:         amount,
		Category:       string(category),
		IsIncome:       amount.IsPositive(),
		IsSubscription: p.IsSubscription(desc),
		RawLine:        raw,
	}
}

// IsSubscription matches desc case-insensitively against the configured
// keywords, or KnownSubscriptions when none are configured.
func (p BankParser) IsSubscription(desc string) bool {
	keywords := p.SubscriptionKeywords
	if len(keywords) == 0 {
		keywords = KnownSubscriptions
	}
	upper := strings.ToUpper(desc)
	for _, kw := range keywords {
		if kw = strings.ToUpper(strings.TrimSpace(kw)); kw != "" && strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// Subscriptions filters the recurring charges out of txs.
func Subscriptions(txs []entity.Transaction) []entity.Transaction {
	out := []entity.Transaction{}
	for _, tx := range txs {
		if tx.IsSubscription {
			out = append(out, tx)
		}
	}
	return out
}

// resolveColumns assigns header columns to roles: exact alias matches
// first, in alias priority order, then substring matches. The single
// amount role only takes exact matches, so "Debit Amount" and "Credit
// Amount" resolve to a debit/credit pair. A column is claimed at most once.
func resolveColumns(header []string) (map[role]int, bool) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	cols := make(map[role]int)
	claimed := make(map[int]bool)

	claim := func(substring bool, match func(h, alias string) bool) {
		for _, spec := range csvAliases {
			if _, done := cols[spec.role]; done {
				continue
			}
			if substring && spec.role == roleAmount {
				continue
			}
		search:
			for _, alias := range spec.aliases {
				for i, h := range norm {
					if !claimed[i] && match(h, alias) {
						cols[spec.role] = i
						claimed[i] = true
						break search
					}
				}
			}
		}
	}
	claim(false, func(h, alias string) bool { return h == alias })
	claim(true, func(h, alias string) bool { return strings.Contains(h, alias) })

	_, hasDate := cols[roleDate]
	_, hasDesc := cols[roleDescription]
	if !hasDate || !hasDesc {
		return nil, false
	}
	_, hasAmount := cols[roleAmount]
	_, hasDebit := cols[roleDebit]
	_, hasCredit := cols[roleCredit]
	if !hasAmount && !hasDebit && !hasCredit {
		return nil, false
	}
	return cols, true
}

func cell(rec []string, cols map[role]int, r role) string {
	i, ok := cols[r]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func isBankNoise(desc string) bool {
	lower := strings.ToLower(strings.TrimSpace(desc))
	for _, re := range bankNoise {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
