package pipeline

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/entity"
	"github.com/joseph-ayodele/household-docs/internal/fallback"
	"github.com/joseph-ayodele/household-docs/internal/learn"
	"github.com/joseph-ayodele/household-docs/internal/llm"
	"github.com/joseph-ayodele/household-docs/internal/utils"
)

// receiptFromPayload applies defaults to a model receipt: missing merchant,
// bad date, out-of-range prices and a missing total never fail the run.
// A date the model reported as null stays null; only an unreadable one
// becomes today.
func receiptFromPayload(p *llm.ReceiptPayload, learned learn.Mappings, today entity.Date) entity.StructuredReceipt {
	out := entity.StructuredReceipt{
		Merchant: p.Merchant.Or(fallback.UnknownStore),
		Tax:      utils.Money(p.Tax.Or(decimal.Zero)),
		Items:    make([]entity.LineItem, 0, len(p.Items)),
	}
	if raw := strings.TrimSpace(p.Date.Value); p.Date.Valid && raw != "" {
		date := today
		if d, ok := utils.ParseLooseDate(raw); ok {
			date = d
		}
		out.Date = &date
	}

	for _, it := range p.Items {
		name := strings.TrimSpace(it.Name.Value)
		if name == "" {
			continue
		}
		price := utils.Money(it.Price.Or(decimal.Zero))
		if !entity.ValidPrice(price) {
			continue
		}
		qty := it.Quantity.Or(decimal.NewFromInt(1))
		if !qty.IsPositive() {
			qty = decimal.NewFromInt(1)
		}
		item := entity.LineItem{
			Name:     name,
			Price:    price,
			Quantity: qty,
			Category: itemCategory(name, it.Category.Value, learned),
		}
		if it.Unit.Valid {
			unit := it.Unit.Value
			item.Unit = &unit
		}
		out.Items = append(out.Items, item)
	}

	if total := p.Total.Or(decimal.Zero); p.Total.Valid && !total.IsZero() {
		out.Total = utils.Money(total)
	} else {
		out.Total = out.ItemsTotal()
	}
	return out
}

// itemCategory prefers a household's own choice, then the model's label
// mapped onto the receipt vocabulary.
func itemCategory(name, label string, learned learn.Mappings) string {
	if cat, ok := learned.Match(name); ok {
		return cat
	}
	canon, ok := constants.Canonicalize(label)
	if !ok {
		return string(constants.Other)
	}
	return string(canon)
}

// withExpiry estimates expiry dates from the purchase date and the
// category's shelf life. Items in categories without one are left alone.
func withExpiry(r *entity.StructuredReceipt) {
	if r.Date == nil {
		return
	}
	for i := range r.Items {
		days, ok := constants.DefaultShelfLifeDays[constants.Category(r.Items[i].Category)]
		if !ok {
			continue
		}
		exp := r.Date.AddDays(days)
		r.Items[i].ExpiryDate = &exp
	}
}

func statementFromPayload(p *llm.StatementPayload, bank fallback.BankParser, today entity.Date) entity.StructuredStatement {
	out := entity.StructuredStatement{
		BankName:       p.BankName.Or(entity.UnknownBank),
		OpeningBalance: utils.Money(p.OpeningBalance.Or(decimal.Zero)),
		ClosingBalance: utils.Money(p.ClosingBalance.Or(decimal.Zero)),
		Transactions:   make([]entity.Transaction, 0, len(p.Transactions)),
	}
	if p.AccountLast4.Valid {
		last4 := p.AccountLast4.Value
		if len(last4) > 4 {
			last4 = last4[len(last4)-4:]
		}
		out.AccountLast4 = &last4
	}
	if p.Period.Valid {
		start, okStart := utils.ParseLooseDate(p.Period.Value.Start.Value)
		end, okEnd := utils.ParseLooseDate(p.Period.Value.End.Value)
		if okStart && okEnd {
			out.Period = &entity.StatementPeriod{Start: start, End: end}
		}
	}

	for _, tx := range p.Transactions {
		desc := strings.TrimSpace(tx.Description.Value)
		if desc == "" && !tx.Amount.Valid {
			continue
		}
		date := today
		if d, ok := utils.ParseLooseDate(tx.Date.Value); tx.Date.Valid && ok {
			date = d
		}
		amount := utils.Money(tx.Amount.Or(decimal.Zero))
		isIncome := amount.IsPositive()
		if tx.IsIncome.Valid {
			isIncome = tx.IsIncome.Value
		}
		out.Transactions = append(out.Transactions, entity.Transaction{
			Date:           date,
			Description:    desc,
			Amount:         amount,
			Category:       tx.Category.Or(string(constants.Other)),
			IsIncome:       isIncome,
			IsSubscription: bank.IsSubscription(desc),
		})
	}
	return out
}
