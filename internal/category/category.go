package category

import "strings"

// Category is one of the fixed tax categories a receipt can be filed under.
type Category string

const (
	OfficeSupplies       Category = "Office Supplies"
	Travel               Category = "Travel"
	Meals                Category = "Meals & Entertainment"
	FuelVehicle          Category = "Fuel & Vehicle"
	ProfessionalServices Category = "Professional Services"
	Marketing            Category = "Marketing & Advertising"
	Utilities            Category = "Utilities"
	RentFacilities       Category = "Rent & Facilities"
	Insurance            Category = "Insurance"
	Equipment            Category = "Equipment & Technology"
	Training             Category = "Training & Education"
	Medical              Category = "Medical & Health"
	HomeGarden           Category = "Home & Garden"
	Groceries            Category = "Groceries & Food"
	Clothing             Category = "Clothing & Personal"
	Gifts                Category = "Gifts & Entertainment"
	Banking              Category = "Banking & Finance"
	Shipping             Category = "Shipping & Postage"
	OtherBusiness        Category = "Other Business"
	Personal             Category = "Personal"
)

var all = []Category{
	OfficeSupplies,
	Travel,
	Meals,
	FuelVehicle,
	ProfessionalServices,
	Marketing,
	Utilities,
	RentFacilities,
	Insurance,
	Equipment,
	Training,
	Medical,
	HomeGarden,
	Groceries,
	Clothing,
	Gifts,
	Banking,
	Shipping,
	OtherBusiness,
	Personal,
}

// All returns the taxonomy in its stable order.
func All() []Category {
	out := make([]Category, len(all))
	copy(out, all)
	return out
}

// AsStringSlice returns the taxonomy as plain strings, for prompt building
// and schema enums.
func AsStringSlice() []string {
	result := make([]string, len(all))
	for i, cat := range all {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label onto the taxonomy. The second return
// value reports whether the label was recognized; unrecognized labels map to
// OtherBusiness.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return OtherBusiness, false
	}

	for _, cat := range all {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	// common label variants seen from extraction backends
	synonyms := map[string]Category{
		"meals":             Meals,
		"entertainment":     Gifts,
		"food":              Groceries,
		"groceries":         Groceries,
		"gas":               FuelVehicle,
		"fuel":              FuelVehicle,
		"vehicle":           FuelVehicle,
		"travel expenses":   Travel,
		"medical":           Medical,
		"health":            Medical,
		"office":            OfficeSupplies,
		"supplies":          OfficeSupplies,
		"equipment":         Equipment,
		"technology":        Equipment,
		"software":          Equipment,
		"shipping":          Shipping,
		"postage":           Shipping,
		"clothing":          Clothing,
		"utilities":         Utilities,
		"rent":              RentFacilities,
		"insurance":         Insurance,
		"marketing":         Marketing,
		"advertising":       Marketing,
		"education":         Training,
		"training":          Training,
		"banking":           Banking,
		"finance":           Banking,
		"professional fees": ProfessionalServices,
		"legal":             ProfessionalServices,
		"other":             OtherBusiness,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	return OtherBusiness, false
}
