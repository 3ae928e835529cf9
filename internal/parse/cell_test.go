package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketNumber(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  int64
		expectErr bool
	}{
		{name: "plain", raw: "12", expected: 12},
		{name: "padded", raw: "  7 ", expected: 7},
		{name: "leading zeros", raw: "0042", expected: 42},
		{name: "numeric cell", raw: "12.0", expected: 12},
		{name: "exponent", raw: "1.2e1", expected: 12},
		{name: "zero", raw: "0", expectErr: true},
		{name: "negative", raw: "-3", expectErr: true},
		{name: "fraction", raw: "1.5", expectErr: true},
		{name: "text", raw: "abc", expectErr: true},
		{name: "empty", raw: "", expectErr: true},
		{name: "nan", raw: "NaN", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := TicketNumber(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestCounter(t *testing.T) {
	n, err := Counter(" 0 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = Counter("-1")
	assert.Error(t, err)
	_, err = Counter("4a")
	assert.Error(t, err)
}

func TestDate(t *testing.T) {
	testCases := map[string]string{
		"2025-01-05":    "2025-01-05",
		"2025/1/5":      "2025-01-05",
		"2025.01.05":    "2025-01-05",
		"2025年1月5日":     "2025-01-05",
		" 2025 / 12 / 31 ": "2025-12-31",
		"2025-02-30":    "2025-02-30",
		"next week":     "next week",
		"":              "",
	}
	for raw, expected := range testCases {
		assert.Equal(t, expected, Date(raw), "raw=%q", raw)
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Acme Corp", Text("  Acme \t  Corp \n"))
}
