package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func stat(name, net string) core.PersonStat {
	return core.PersonStat{Name: name, NetBalance: decimal.RequireFromString(net)}
}

func TestPlan_Sign(t *testing.T) {
	a := Plan(stat("Alex", "45.00"), "a1")
	assert.Equal(t, core.Income, a.Type)
	assert.True(t, a.Amount.Equal(decimal.RequireFromString("45")))
	assert.True(t, a.Enabled)

	a = Plan(stat("Sam", "-12.50"), "a1")
	assert.Equal(t, core.Expense, a.Type)
	assert.True(t, a.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, a.Enabled)
}

func TestPlan_DisabledBoundary(t *testing.T) {
	tests := []struct {
		net     string
		enabled bool
	}{
		{"0", false},
		{"0.005", false},
		{"-0.009", false},
		{"0.01", true},
		{"0.02", true},
		{"-0.02", true},
	}
	for _, tt := range tests {
		t.Run(tt.net, func(t *testing.T) {
			a := Plan(stat("Alex", tt.net), "a1")
			assert.Equal(t, tt.enabled, a.Enabled)
			if !tt.enabled {
				assert.ErrorIs(t, a.Validate(), ErrSettled)
			}
		})
	}
}

func TestAction_Validate(t *testing.T) {
	require.NoError(t, Plan(stat("Alex", "3"), "a1").Validate())
	assert.ErrorIs(t, Plan(stat("Alex", "3"), "").Validate(), ErrNoAccount)
	assert.ErrorIs(t, Plan(stat("Alex", "3"), core.AllAccounts).Validate(), ErrNoAccount)
	assert.ErrorIs(t, Plan(stat(" ", "3"), "a1").Validate(), ErrNoPerson)
}

func TestAction_MessageMatchesDirection(t *testing.T) {
	assert.Equal(t,
		"This will create an income of $45.00 to record that Alex paid you back.",
		Plan(stat("Alex", "45"), "a1").Message())
	assert.Equal(t,
		"This will create an expense of $12.50 to record that you paid back Sam.",
		Plan(stat("Sam", "-12.5"), "a1").Message())
	assert.Equal(t,
		"Your balance with Kim is already settled.",
		Plan(stat("Kim", "0.004"), "a1").Message())
}

func TestAction_Transaction(t *testing.T) {
	a := Plan(stat("Alex", "-20"), "a1")
	tx := a.Transaction(core.NewDate(2025, 5, 1))
	require.NoError(t, tx.Validate())
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, Category, tx.Category)
	assert.Equal(t, "Alex", tx.Person)
	assert.Equal(t, Request{PersonName: "Alex", AccountID: "a1"}, a.Request())
}
