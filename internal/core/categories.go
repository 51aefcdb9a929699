package core

// Category enumerations are closed per transaction type. The classifier and
// all request validation check membership against these sets.

var expenseCategories = []string{
	"housing", "transportation", "groceries", "utilities", "entertainment",
	"food", "shopping", "healthcare", "education", "personal", "travel",
	"insurance", "gifts", "bills", "other-expense",
}

var incomeCategories = []string{
	"salary", "freelance", "investments", "business", "rental", "other-income",
}

// Categories returns the valid category labels for a transaction type.
func Categories(t TransactionType) []string {
	if t == Income {
		return incomeCategories
	}
	return expenseCategories
}

// ValidCategory reports whether label belongs to the category set for t.
func ValidCategory(t TransactionType, label string) bool {
	for _, c := range Categories(t) {
		if c == label {
			return true
		}
	}
	return false
}

// OtherCategory is the generic fallback bucket for a transaction type.
func OtherCategory(t TransactionType) string {
	if t == Income {
		return "other-income"
	}
	return "other-expense"
}
