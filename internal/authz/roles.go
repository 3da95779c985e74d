package authz

// Account types stored in users.account_type.
const (
	AccountCandidate = "candidate"
	AccountCompany   = "company"
	AccountAdmin     = "admin"
)

// IsSelfRegistrable reports whether the public register flow may create the type.
func IsSelfRegistrable(accountType string) bool {
	return accountType == AccountCandidate || accountType == AccountCompany
}

func IsValid(accountType string) bool {
	return IsSelfRegistrable(accountType) || accountType == AccountAdmin
}
