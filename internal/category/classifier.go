package category

import "strings"

// typeRule maps a keyword found in receipt-type text to a category. Rules
// are checked in order; the first hit wins.
type typeRule struct {
	keyword string
	cat     Category
}

var typeRules = []typeRule{
	{"grocery", Groceries},
	{"supermarket", Groceries},
	{"restaurant", Meals},
	{"cafe", Meals},
	{"coffee", Meals},
	{"bar", Meals},
	{"fast food", Meals},
	{"gas", FuelVehicle},
	{"fuel", FuelVehicle},
	{"auto", FuelVehicle},
	{"parking", Travel},
	{"hotel", Travel},
	{"airline", Travel},
	{"transport", Travel},
	{"taxi", Travel},
	{"pharmacy", Medical},
	{"medical", Medical},
	{"clinic", Medical},
	{"hospital", Medical},
	{"hardware", HomeGarden},
	{"garden", HomeGarden},
	{"office", OfficeSupplies},
	{"stationery", OfficeSupplies},
	{"electronics", Equipment},
	{"computer", Equipment},
	{"clothing", Clothing},
	{"apparel", Clothing},
	{"utility", Utilities},
	{"insurance", Insurance},
	{"shipping", Shipping},
	{"postal", Shipping},
	{"bank", Banking},
	{"retail", OtherBusiness},
}

// Classify picks one taxonomy value from per-item category labels and the
// receipt-type text. Majority vote over the items decides when any item
// carries a category; otherwise the receipt-type keyword rules apply, and
// OtherBusiness is the final fallback. Both extraction paths share this
// function so the assigned category never depends on which path ran.
func Classify(itemCategories []string, receiptType string) Category {
	if cat, ok := majority(itemCategories); ok {
		return cat
	}

	lower := strings.ToLower(receiptType)
	for _, rule := range typeRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.cat
		}
	}
	return OtherBusiness
}

// majority tallies recognized item categories and returns the mode. Ties go
// to the category first seen in item order.
func majority(itemCategories []string) (Category, bool) {
	counts := make(map[Category]int)
	var order []Category
	for _, label := range itemCategories {
		if strings.TrimSpace(label) == "" {
			continue
		}
		cat, ok := Canonicalize(label)
		if !ok {
			continue
		}
		if counts[cat] == 0 {
			order = append(order, cat)
		}
		counts[cat]++
	}
	if len(order) == 0 {
		return OtherBusiness, false
	}

	best := order[0]
	for _, cat := range order[1:] {
		if counts[cat] > counts[best] {
			best = cat
		}
	}
	return best, true
}
