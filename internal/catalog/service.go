package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yakov55994/manage-sub003/internal/id"
	"github.com/yakov55994/manage-sub003/internal/model"
)

var (
	// ErrBankNotFound is returned when a bank code is not in the catalog.
	ErrBankNotFound = errors.New("catalog: bank not found")

	// ErrBranchNotFound is returned when a branch code is not part of its bank.
	ErrBranchNotFound = errors.New("catalog: branch not found")
)

// DefaultPath is the catalog location relative to a project root.
var DefaultPath = filepath.Join("reference", "banks.csv")

// Catalog is a read-only lookup over bank and branch codes. It is built
// once and never mutated, so it is safe for concurrent use.
type Catalog struct {
	banks    []model.Bank
	byCode   map[string]int
	branches map[string]model.Branch
}

// New builds a Catalog from banks. The input slice is copied.
func New(banks []model.Bank) *Catalog {
	c := &Catalog{
		banks:    make([]model.Bank, len(banks)),
		byCode:   make(map[string]int, len(banks)),
		branches: make(map[string]model.Branch),
	}
	for i, b := range banks {
		b.Code = id.NormalizeCode(b.Code)
		b.Branches = append([]model.Branch(nil), b.Branches...)
		for j := range b.Branches {
			b.Branches[j].BankCode = b.Code
			b.Branches[j].Code = id.NormalizeCode(b.Branches[j].Code)
			c.branches[branchKey(b.Code, b.Branches[j].Code)] = b.Branches[j]
		}
		c.banks[i] = b
		c.byCode[b.Code] = i
	}
	return c
}

// Load reads the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bank catalog: %w", err)
	}
	defer f.Close()

	banks, err := ReadBanks(f)
	if err != nil {
		return nil, fmt.Errorf("reading bank catalog: %w", err)
	}
	return New(banks), nil
}

// LookupBank returns the bank with the given code.
func (c *Catalog) LookupBank(code string) (model.Bank, error) {
	i, ok := c.byCode[id.NormalizeCode(code)]
	if !ok {
		return model.Bank{}, fmt.Errorf("%w: %q", ErrBankNotFound, code)
	}
	return copyBank(c.banks[i]), nil
}

// LookupBranch returns a branch of the given bank.
func (c *Catalog) LookupBranch(bankCode, branchCode string) (model.Branch, error) {
	bank := id.NormalizeCode(bankCode)
	if _, ok := c.byCode[bank]; !ok {
		return model.Branch{}, fmt.Errorf("%w: %q", ErrBankNotFound, bankCode)
	}
	br, ok := c.branches[branchKey(bank, id.NormalizeCode(branchCode))]
	if !ok {
		return model.Branch{}, fmt.Errorf("%w: %q in bank %s", ErrBranchNotFound, branchCode, bank)
	}
	return br, nil
}

// Banks returns a copy of all banks in load order.
func (c *Catalog) Banks() []model.Bank {
	out := make([]model.Bank, len(c.banks))
	for i, b := range c.banks {
		out[i] = copyBank(b)
	}
	return out
}

// Save writes the catalog to path, creating parent directories.
func (c *Catalog) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating catalog dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating catalog file: %w", err)
	}
	defer f.Close()

	if err := WriteBanks(f, c.banks); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return nil
}

func copyBank(b model.Bank) model.Bank {
	b.Branches = append([]model.Branch(nil), b.Branches...)
	return b
}

func branchKey(bank, branch string) string {
	return bank + "/" + branch
}
