package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakov55994/manage-sub003/internal/model"
)

func TestRoundTrip(t *testing.T) {
	banks := DefaultBanks()

	var buf bytes.Buffer
	require.NoError(t, WriteBanks(&buf, banks))

	got, err := ReadBanks(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(banks))

	for i := range banks {
		assert.Equal(t, banks[i].Code, got[i].Code)
		assert.Equal(t, banks[i].Name, got[i].Name)
		assert.Equal(t, banks[i].Branches, got[i].Branches)
	}
}

func TestReadBanks_BankWithoutBranches(t *testing.T) {
	banks := []model.Bank{{Code: "54", Name: "Bank of Jerusalem"}}

	var buf bytes.Buffer
	require.NoError(t, WriteBanks(&buf, banks))

	got, err := ReadBanks(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Branches)
}

func TestReadBanks_NormalizesCodes(t *testing.T) {
	data := Header + "\n010,Bank Leumi,0800,Tel Aviv,Main\n"
	got, err := ReadBanks(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10", got[0].Code)
	assert.Equal(t, "800", got[0].Branches[0].Code)
	assert.Equal(t, "10", got[0].Branches[0].BankCode)
}

func TestReadBanks_Errors(t *testing.T) {
	tests := map[string]string{
		"bad bank code":   "1x,Bank,1,City,Addr\n",
		"bad branch code": "10,Bank,b1,City,Addr\n",
		"duplicate":       "10,Bank,1,City,Addr\n10,Bank,1,City,Addr\n",
		"name mismatch":   "10,Bank,1,City,Addr\n10,Other,2,City,Addr\n",
		"short row":       "10,Bank\n",
	}
	for name, rows := range tests {
		_, err := ReadBanks(strings.NewReader(Header + "\n" + rows))
		assert.Error(t, err, name)
	}
}

func TestReadBanks_Empty(t *testing.T) {
	got, err := ReadBanks(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}
