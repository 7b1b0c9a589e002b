package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yakov55994/manage-sub003/internal/id"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// Header is the CSV header for banks.csv.
const Header = "bank_code,bank_name,branch_code,city,address"

const (
	numFields     = 5
	colBankCode   = 0
	colBankName   = 1
	colBranchCode = 2
	colCity       = 3
	colAddress    = 4
)

// ReadBanks reads banks.csv. Each row describes one branch; rows of the same
// bank must carry the same name. A row with an empty branch_code declares a
// bank without branches.
func ReadBanks(r io.Reader) ([]model.Bank, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading banks CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var banks []model.Bank
	index := make(map[string]int)
	branchSeen := make(map[string]bool)
	for i, rec := range records[1:] {
		row := i + 2
		code := id.NormalizeCode(rec[colBankCode])
		if !id.IsDigits(code) {
			return nil, fmt.Errorf("row %d: invalid bank_code %q", row, rec[colBankCode])
		}

		pos, ok := index[code]
		if !ok {
			pos = len(banks)
			index[code] = pos
			banks = append(banks, model.Bank{Code: code, Name: strings.TrimSpace(rec[colBankName])})
		} else if name := strings.TrimSpace(rec[colBankName]); name != banks[pos].Name {
			return nil, fmt.Errorf("row %d: bank %s named both %q and %q", row, code, banks[pos].Name, name)
		}

		if strings.TrimSpace(rec[colBranchCode]) == "" {
			continue
		}
		branchCode := id.NormalizeCode(rec[colBranchCode])
		if !id.IsDigits(branchCode) {
			return nil, fmt.Errorf("row %d: invalid branch_code %q", row, rec[colBranchCode])
		}
		key := code + "/" + branchCode
		if branchSeen[key] {
			return nil, fmt.Errorf("row %d: duplicate branch %s", row, key)
		}
		branchSeen[key] = true

		banks[pos].Branches = append(banks[pos].Branches, model.Branch{
			BankCode: code,
			Code:     branchCode,
			City:     strings.TrimSpace(rec[colCity]),
			Address:  strings.TrimSpace(rec[colAddress]),
		})
	}
	return banks, nil
}

// WriteBanks writes banks.csv, one row per branch.
func WriteBanks(w io.Writer, banks []model.Bank) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, bank := range banks {
		if len(bank.Branches) == 0 {
			if err := cw.Write([]string{bank.Code, bank.Name, "", "", ""}); err != nil {
				return fmt.Errorf("writing bank %s: %w", bank.Code, err)
			}
			continue
		}
		for _, br := range bank.Branches {
			if err := cw.Write([]string{bank.Code, bank.Name, br.Code, br.City, br.Address}); err != nil {
				return fmt.Errorf("writing branch %s/%s: %w", bank.Code, br.Code, err)
			}
		}
	}
	return cw.Error()
}
