package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementSchema() []Attribute {
	return []Attribute{
		{Name: "AccountNumber", Description: "the account number"},
		{Name: "StatementDate"},
		{Name: "AccountHolder", Kind: KindGroup, Attributes: []Attribute{
			{Name: "Name"},
			{Name: "Address"},
		}},
		{Name: "Transactions", Kind: KindList, Item: &Attribute{
			Kind: KindGroup,
			Attributes: []Attribute{
				{Name: "Date"},
				{Name: "Amount"},
			},
		}},
	}
}

func statementExtraction() map[string]any {
	return map[string]any{
		"AccountNumber": "123-456",
		"StatementDate": "2024-01-31",
		"AccountHolder": map[string]any{
			"Name":    "Jane Doe",
			"Address": "1 Main St",
		},
		"Transactions": []any{
			map[string]any{"Date": "2024-01-03", "Amount": "12.50"},
			map[string]any{"Date": "2024-01-17", "Amount": "99.00"},
		},
	}
}

func TestAnalyze(t *testing.T) {
	leaves, err := Analyze(statementSchema(), statementExtraction())
	require.NoError(t, err)

	var got []string
	for _, p := range leaves {
		got = append(got, p.String())
	}
	want := []string{
		"AccountNumber",
		"StatementDate",
		"AccountHolder.Name",
		"AccountHolder.Address",
		"Transactions[0].Date",
		"Transactions[0].Amount",
		"Transactions[1].Date",
		"Transactions[1].Amount",
	}
	assert.Equal(t, want, got, "leaves must follow declaration order, lists by item index")
}

func TestAnalyzePrunedAttributeSkipped(t *testing.T) {
	extraction := statementExtraction()
	delete(extraction, "AccountHolder")

	leaves, err := Analyze(statementSchema(), extraction)
	require.NoError(t, err)
	for _, p := range leaves {
		assert.NotContains(t, p.String(), "AccountHolder")
	}
	assert.Len(t, leaves, 6)
}

func TestAnalyzeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantSub string
	}{
		{
			name:    "group value is a scalar",
			mutate:  func(m map[string]any) { m["AccountHolder"] = "Jane Doe" },
			wantSub: "AccountHolder",
		},
		{
			name:    "list value is an object",
			mutate:  func(m map[string]any) { m["Transactions"] = map[string]any{"Date": "x"} },
			wantSub: "Transactions",
		},
		{
			name: "nested item shape wrong",
			mutate: func(m map[string]any) {
				m["Transactions"] = []any{"not an object"}
			},
			wantSub: "Transactions[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extraction := statementExtraction()
			tt.mutate(extraction)

			_, err := Analyze(statementSchema(), extraction)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch), "want ErrSchemaMismatch, got %v", err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestAnalyzeNestedLists(t *testing.T) {
	attrs := []Attribute{
		{Name: "Pages", Kind: KindList, Item: &Attribute{
			Kind: KindGroup,
			Attributes: []Attribute{
				{Name: "Heading"},
				{Name: "Lines", Kind: KindList, Item: &Attribute{Name: "Line"}},
			},
		}},
	}
	extraction := map[string]any{
		"Pages": []any{
			map[string]any{
				"Heading": "Intro",
				"Lines":   []any{"a", "b"},
			},
		},
	}

	leaves, err := Analyze(attrs, extraction)
	require.NoError(t, err)

	var got []string
	for _, p := range leaves {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"Pages[0].Heading",
		"Pages[0].Lines[0]",
		"Pages[0].Lines[1]",
	}, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		attrs []Attribute
		ok    bool
	}{
		{"simple leaf", []Attribute{{Name: "A"}}, true},
		{"unnamed attribute", []Attribute{{}}, false},
		{"group without children", []Attribute{{Name: "G", Kind: KindGroup}}, false},
		{"list without item", []Attribute{{Name: "L", Kind: KindList}}, false},
		{"unknown kind", []Attribute{{Name: "A", Kind: "tuple"}}, false},
		{
			"simple with children",
			[]Attribute{{Name: "A", Attributes: []Attribute{{Name: "B"}}}},
			false,
		},
		{
			"nameless item template is fine",
			[]Attribute{{Name: "L", Kind: KindList, Item: &Attribute{}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.attrs)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
