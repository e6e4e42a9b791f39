package constants

import (
	"strings"
)

type Category string

// Receipt item categories. The model is asked to stay inside this vocabulary.
const (
	Dairy         Category = "Dairy"
	Bakery        Category = "Bakery"
	Produce       Category = "Produce"
	Meat          Category = "Meat"
	Seafood       Category = "Seafood"
	Beverages     Category = "Beverages"
	Snacks        Category = "Snacks"
	Household     Category = "Household"
	PersonalCare  Category = "Personal Care"
	PantryStaples Category = "Pantry Staples"
	Frozen        Category = "Frozen"
	Deli          Category = "Deli"
	Other         Category = "Other"

	// Uncategorized is what the fallback parser assigns when nothing matched.
	Uncategorized Category = "Uncategorized"
)

// Bank transaction categories.
const (
	Groceries     Category = "Groceries"
	Dining        Category = "Dining"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Healthcare    Category = "Healthcare"
	Insurance     Category = "Insurance"
	Subscriptions Category = "Subscriptions"
	Transfer      Category = "Transfer"
	Income        Category = "Income"
	ATM           Category = "ATM"
	Fees          Category = "Fees"
)

var receiptCategories = []Category{
	Dairy, Bakery, Produce, Meat, Seafood, Beverages, Snacks,
	Household, PersonalCare, PantryStaples, Frozen, Deli, Other,
}

var statementCategories = []Category{
	Groceries, Dining, Transport, Utilities, Entertainment, Shopping, Healthcare,
	Insurance, Subscriptions, Transfer, Income, ATM, Fees, Other,
}

func ReceiptCategories() []string   { return asStrings(receiptCategories) }
func StatementCategories() []string { return asStrings(statementCategories) }

func asStrings(cats []Category) []string {
	result := make([]string, len(cats))
	for i, cat := range cats {
		result[i] = string(cat)
	}
	return result
}

// KeywordRule maps a lower-case keyword to a category.
type KeywordRule struct {
	Keyword  string   `yaml:"keyword"`
	Category Category `yaml:"category"`
}

// ReceiptKeywords is evaluated in order; the first keyword contained in the
// item name wins.
var ReceiptKeywords = []KeywordRule{
	{"milk", Dairy}, {"cheese", Dairy}, {"butter", Dairy}, {"yogurt", Dairy}, {"cream", Dairy},
	{"bread", Bakery}, {"tortilla", Bakery}, {"bun", Bakery}, {"roll", Bakery},
	{"apple", Produce}, {"banana", Produce}, {"orange", Produce}, {"lettuce", Produce},
	{"tomato", Produce}, {"onion", Produce}, {"potato", Produce}, {"carrot", Produce},
	{"chicken", Meat}, {"beef", Meat}, {"pork", Meat}, {"fish", Seafood}, {"shrimp", Seafood},
	{"egg", Dairy}, {"eggs", Dairy},
	{"water", Beverages}, {"juice", Beverages}, {"soda", Beverages}, {"beer", Beverages},
	{"chips", Snacks}, {"cookie", Snacks}, {"candy", Snacks},
	{"soap", Household}, {"detergent", Household}, {"paper", Household}, {"tissue", Household},
	{"shampoo", PersonalCare}, {"toothpaste", PersonalCare},
	{"rice", PantryStaples}, {"pasta", PantryStaples}, {"flour", PantryStaples},
	{"oil", PantryStaples}, {"sauce", PantryStaples}, {"cereal", PantryStaples},
}

// StatementKeywords categorizes bank descriptions on the fallback path.
var StatementKeywords = []KeywordRule{
	{"payroll", Income}, {"salary", Income}, {"direct dep", Income}, {"interest paid", Income},
	{"atm", ATM}, {"overdraft", Fees}, {"service fee", Fees}, {"monthly fee", Fees},
	{"transfer", Transfer}, {"zelle", Transfer}, {"venmo", Transfer},
	{"netflix", Subscriptions}, {"spotify", Subscriptions}, {"hulu", Subscriptions},
	{"walmart", Groceries}, {"kroger", Groceries}, {"safeway", Groceries}, {"trader joe", Groceries},
	{"whole foods", Groceries}, {"aldi", Groceries}, {"costco", Groceries},
	{"starbucks", Dining}, {"mcdonald", Dining}, {"restaurant", Dining}, {"cafe", Dining},
	{"doordash", Dining}, {"grubhub", Dining},
	{"uber", Transport}, {"lyft", Transport}, {"shell", Transport}, {"chevron", Transport},
	{"exxon", Transport}, {"parking", Transport},
	{"electric", Utilities}, {"water bill", Utilities}, {"comcast", Utilities}, {"verizon", Utilities},
	{"pharmacy", Healthcare}, {"cvs", Healthcare}, {"walgreens", Healthcare},
	{"geico", Insurance}, {"insurance", Insurance},
	{"amazon", Shopping}, {"target", Shopping},
	{"cinema", Entertainment}, {"steam", Entertainment},
}

// MatchKeyword returns the category of the first rule whose keyword is
// contained in the lower-cased text.
func MatchKeyword(rules []KeywordRule, text string) (Category, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.Keyword != "" && strings.Contains(lower, r.Keyword) {
			return r.Category, true
		}
	}
	return "", false
}

// DefaultShelfLifeDays is used to estimate an item's expiry date from the
// purchase date.
var DefaultShelfLifeDays = map[Category]int{
	Dairy:         7,
	Produce:       5,
	Meat:          3,
	Seafood:       2,
	Bakery:        5,
	Deli:          4,
	Snacks:        180,
	Beverages:     365,
	Frozen:        180,
	Household:     730,
	PersonalCare:  730,
	PantryStaples: 365,
}

// Canonicalize maps free-form model labels onto the receipt vocabulary.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}
	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"snacks & beverages": Snacks,
		"drinks":             Beverages,
		"grocery":            PantryStaples,
		"toiletries":         PersonalCare,
		"cleaning":           Household,
		"fruit":              Produce,
		"vegetables":         Produce,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}
	for _, cat := range receiptCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	return Category(strings.TrimSpace(input)), false
}
