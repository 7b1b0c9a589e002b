package catalog

import "github.com/yakov55994/manage-sub003/internal/model"

// DefaultBanks returns the reference dataset written by "paybatch init".
func DefaultBanks() []model.Bank {
	return []model.Bank{
		bank("10", "Bank Leumi",
			model.Branch{Code: "800", City: "Tel Aviv", Address: "35 Yehuda Halevi St"},
			model.Branch{Code: "902", City: "Jerusalem", Address: "21 Jaffa Rd"},
		),
		bank("11", "Israel Discount Bank",
			model.Branch{Code: "1", City: "Tel Aviv", Address: "27 Yehuda Halevi St"},
			model.Branch{Code: "75", City: "Haifa", Address: "47 Ha'Atzmaut Rd"},
		),
		bank("12", "Bank Hapoalim",
			model.Branch{Code: "500", City: "Tel Aviv", Address: "50 Rothschild Blvd"},
			model.Branch{Code: "600", City: "Beer Sheva", Address: "2 Rager Blvd"},
		),
		bank("20", "Mizrahi Tefahot Bank",
			model.Branch{Code: "461", City: "Ramat Gan", Address: "7 Jabotinsky St"},
		),
		bank("31", "First International Bank",
			model.Branch{Code: "12", City: "Tel Aviv", Address: "42 Rothschild Blvd"},
		),
	}
}

func bank(code, name string, branches ...model.Branch) model.Bank {
	for i := range branches {
		branches[i].BankCode = code
	}
	return model.Bank{Code: code, Name: name, Branches: branches}
}
