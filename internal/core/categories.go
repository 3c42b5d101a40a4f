package core

// CustomCategory is the escape hatch for categories outside the recognized set.
const CustomCategory = "Custom"

var (
	expenseCategories = []string{
		"Food", "Transport", "Shopping", "Bills", "Entertainment", "Health",
		"Education", "Travel", "Rent", "To Friends", "To Parents", "Other",
	}
	incomeCategories = []string{
		"Salary", "Freelance", "Investment", "Gift", "Refund",
		"From Friends", "From Parents", "Other",
	}

	// Categories that require a person or group.
	personAssociative = map[string]struct{}{
		"To Friends":   {},
		"To Parents":   {},
		"From Friends": {},
		"From Parents": {},
	}
)

// Categories returns the recognized categories for a transaction type,
// followed by CustomCategory. An invalid type yields nil.
func Categories(t TransactionType) []string {
	var base []string
	switch t {
	case Income:
		base = incomeCategories
	case Expense:
		base = expenseCategories
	default:
		return nil
	}
	out := make([]string, 0, len(base)+1)
	out = append(out, base...)
	return append(out, CustomCategory)
}

// IsRecognizedCategory reports whether category is one of the built-in
// categories for t. CustomCategory itself is not a stored category.
func IsRecognizedCategory(t TransactionType, category string) bool {
	for _, c := range Categories(t) {
		if c == category && c != CustomCategory {
			return true
		}
	}
	return false
}

// IsPersonAssociative reports whether the category needs a person or group.
func IsPersonAssociative(category string) bool {
	_, ok := personAssociative[category]
	return ok
}
