// Package heuristic is the pattern-based field extractor: the last line of
// defense when structured extraction fails. It never fails itself; anything
// it cannot match comes back empty.
package heuristic

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sgrimes/expenselens/internal/category"
	"github.com/sgrimes/expenselens/internal/expense"
)

// Fields is the best-effort partial record the extractor produces.
type Fields struct {
	Vendor        string
	Amount        *decimal.Decimal
	Date          string // canonical YYYY-MM-DD, empty when nothing parsed
	PaymentMethod string
	Address       string
	City          string
	State         string
	PostalCode    string
	Items         []Item
	Category      category.Category
	RawText       string
}

// Item is one "description + trailing price" line.
type Item struct {
	Description string
	Price       decimal.Decimal
}

const (
	vendorScanLines = 5
	dateScanLines   = 10
)

var (
	rePhone    = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	reStreet   = regexp.MustCompile(`^\d+\s+[A-Za-z]`)
	reCityZip  = regexp.MustCompile(`^([A-Za-z .'\-]+),?\s+([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	reAllCaps  = regexp.MustCompile(`^[A-Z][A-Z0-9 .,'&\-]{2,}$`)
	reCorpName = regexp.MustCompile(`(?i)\b(inc|llc|ltd|corp|co)\b\.?\s*$`)
	reTwoWord  = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+$`)
	reHasMoney = regexp.MustCompile(`\d+\.\d{2}`)
)

// amountPatterns are tried in rank order against every line. The capture
// group is the numeric value.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*\.\d{2})`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*\.\d{2})`),
	regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`),
}

// dateRegexes are tried in order over the first dateScanLines lines; each
// hit is then handed to the ordered date-format parser.
var dateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}`),
	regexp.MustCompile(`\d{1,2}[-/.]\d{1,2}[-/.]\d{4}`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2}\b`),
	regexp.MustCompile(`(?i)(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}`),
}

var reItemLine = regexp.MustCompile(`^(.+?)\s+\$?(\d{1,3}(?:,\d{3})*\.\d{2})$`)

// itemStopWords keep summary lines out of the item list.
var itemStopWords = []string{"total", "subtotal", "tax", "change", "cash", "tender", "balance", "payment", "amount"}

// categoryKeywords maps receipt text to a category. Scanned in order; the
// first keyword found anywhere in the text wins.
var categoryKeywords = []struct {
	keyword string
	cat     category.Category
}{
	{"walmart", category.Groceries},
	{"kroger", category.Groceries},
	{"safeway", category.Groceries},
	{"grocery", category.Groceries},
	{"supermarket", category.Groceries},
	{"restaurant", category.Meals},
	{"cafe", category.Meals},
	{"coffee", category.Meals},
	{"pizza", category.Meals},
	{"diner", category.Meals},
	{"shell", category.FuelVehicle},
	{"chevron", category.FuelVehicle},
	{"exxon", category.FuelVehicle},
	{"fuel", category.FuelVehicle},
	{"gasoline", category.FuelVehicle},
	{"cvs", category.Medical},
	{"walgreens", category.Medical},
	{"pharmacy", category.Medical},
	{"clinic", category.Medical},
	{"hotel", category.Travel},
	{"airline", category.Travel},
	{"uber", category.Travel},
	{"lyft", category.Travel},
	{"parking", category.Travel},
	{"staples", category.OfficeSupplies},
	{"office depot", category.OfficeSupplies},
	{"stationery", category.OfficeSupplies},
	{"home depot", category.HomeGarden},
	{"lowe's", category.HomeGarden},
	{"garden", category.HomeGarden},
	{"best buy", category.Equipment},
	{"electronics", category.Equipment},
	{"usps", category.Shipping},
	{"fedex", category.Shipping},
	{"postage", category.Shipping},
	{"apparel", category.Clothing},
	{"clothing", category.Clothing},
	{"insurance", category.Insurance},
	{"electric bill", category.Utilities},
	{"utility", category.Utilities},
	{"internet", category.Utilities},
	{"tuition", category.Training},
	{"course", category.Training},
	{"atm", category.Banking},
	{"bank fee", category.Banking},
	{"salon", category.Personal},
	{"barber", category.Personal},
}

// paymentKeywords are single-pattern matches per line; first hit wins.
var paymentKeywords = []struct {
	keyword string
	method  string
}{
	{"american express", "American Express"},
	{"mastercard", "Mastercard"},
	{"master card", "Mastercard"},
	{"visa", "Visa"},
	{"discover", "Discover"},
	{"amex", "American Express"},
	{"debit", "Debit"},
	{"credit", "Credit"},
	{"cash", "Cash"},
}

// Extract runs every pattern family over the recognized lines and returns
// whatever matched. Same lines in, same fields out, every time.
func Extract(lines []string) Fields {
	trimmed := make([]string, 0, len(lines))
	for _, ln := range lines {
		trimmed = append(trimmed, strings.TrimSpace(ln))
	}

	f := Fields{
		RawText:  strings.Join(trimmed, "\n"),
		Category: category.OtherBusiness,
	}

	f.Vendor = extractVendor(trimmed)
	f.Amount = extractAmount(trimmed)
	f.Date = extractDate(trimmed)
	f.PaymentMethod = extractPayment(trimmed)
	f.Address, f.City, f.State, f.PostalCode = extractLocation(trimmed)
	f.Items = extractItems(trimmed)
	f.Category = lookupCategory(f.RawText)
	return f
}

// extractVendor scans the first lines for the most name-like candidate:
// all-caps first, then a corporate suffix, then a title-case two-word name,
// then whatever non-trivial line comes first.
func extractVendor(lines []string) string {
	limit := vendorScanLines
	if len(lines) < limit {
		limit = len(lines)
	}
	head := lines[:limit]

	usable := func(ln string) bool {
		return ln != "" && !rePhone.MatchString(ln) && !reStreet.MatchString(ln) &&
			!reCityZip.MatchString(ln) && !reHasMoney.MatchString(ln)
	}

	for _, ln := range head {
		if usable(ln) && reAllCaps.MatchString(ln) {
			return ln
		}
	}
	for _, ln := range head {
		if usable(ln) && reCorpName.MatchString(ln) {
			return ln
		}
	}
	for _, ln := range head {
		if usable(ln) && reTwoWord.MatchString(ln) {
			return ln
		}
	}
	for _, ln := range lines {
		if len(ln) >= 3 && strings.ContainsFunc(ln, isLetter) {
			return ln
		}
	}
	return ""
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// extractAmount evaluates every line against the ordered monetary patterns.
// Context keywords beat pattern rank: a line saying "total" wins outright,
// "amount" comes next, everything else is ranked by which pattern matched.
// Ties go to the earliest line.
func extractAmount(lines []string) *decimal.Decimal {
	bestPriority := -1
	var best *decimal.Decimal

	for _, ln := range lines {
		lower := strings.ToLower(ln)
		for rank, re := range amountPatterns {
			m := re.FindStringSubmatch(ln)
			if m == nil {
				continue
			}

			priority := 2 + rank
			if strings.Contains(lower, "total") && !strings.Contains(lower, "subtotal") {
				priority = 0
			} else if strings.Contains(lower, "amount") {
				priority = 1
			}

			if bestPriority != -1 && priority >= bestPriority {
				break
			}
			val, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
			if err != nil {
				continue
			}
			best = &val
			bestPriority = priority
			break
		}
	}
	return best
}

// extractDate tries the ordered regex list over the first lines, then the
// ordered format list on each hit. First successful parse wins; no match is
// simply no date.
func extractDate(lines []string) string {
	limit := dateScanLines
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, re := range dateRegexes {
		for _, ln := range lines[:limit] {
			m := re.FindString(ln)
			if m == "" {
				continue
			}
			if canonical, ok := expense.ParseDate(m); ok {
				return canonical
			}
		}
	}
	return ""
}

func extractPayment(lines []string) string {
	for _, ln := range lines {
		lower := strings.ToLower(ln)
		for _, pk := range paymentKeywords {
			if strings.Contains(lower, pk.keyword) {
				return pk.method
			}
		}
	}
	return ""
}

func extractLocation(lines []string) (address, city, state, zip string) {
	for _, ln := range lines {
		if address == "" && reStreet.MatchString(ln) && !rePhone.MatchString(ln) && !reHasMoney.MatchString(ln) {
			address = ln
		}
		if city == "" {
			if m := reCityZip.FindStringSubmatch(ln); m != nil {
				city = strings.ToLower(strings.TrimSpace(m[1]))
				state = m[2]
				zip = m[3]
			}
		}
	}
	return address, city, state, zip
}

// extractItems splits "description   12.34" lines. Descriptions shorter than
// 3 characters after the price is stripped are noise, as are summary lines.
func extractItems(lines []string) []Item {
	var items []Item
lineLoop:
	for _, ln := range lines {
		m := reItemLine.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		if len(desc) < 3 {
			continue
		}
		lower := strings.ToLower(desc)
		for _, stop := range itemStopWords {
			if strings.Contains(lower, stop) {
				continue lineLoop
			}
		}
		price, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			continue
		}
		items = append(items, Item{Description: desc, Price: price})
	}
	return items
}

func lookupCategory(text string) category.Category {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		if strings.Contains(lower, ck.keyword) {
			return ck.cat
		}
	}
	return category.OtherBusiness
}
