package model

// Bank is one entry of the bank reference catalog.
type Bank struct {
	Code     string
	Name     string
	Branches []Branch // ordered as loaded
}

// Branch is a branch of exactly one Bank.
type Branch struct {
	BankCode string
	Code     string
	City     string
	Address  string
}
