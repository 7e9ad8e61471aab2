package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		balance int64
		want    int64
		wantErr bool
	}{
		{name: "plain digits", text: "500", balance: 1000, want: 500},
		{name: "with commas", text: "1,500", balance: 10000, want: 1500},
		{name: "with underscores", text: "1_500", balance: 10000, want: 1500},
		{name: "k shorthand", text: "5k", balance: 100000, want: 5000},
		{name: "m shorthand", text: "2m", balance: 5000000, want: 2000000},
		{name: "all", text: "all", balance: 1234, want: 1234},
		{name: "max", text: "MAX", balance: 1234, want: 1234},
		{name: "half", text: "half", balance: 1000, want: 500},
		{name: "surrounding spaces", text: "  250 ", balance: 1000, want: 250},
		{name: "not a number", text: "abc", wantErr: true},
		{name: "empty", text: "", wantErr: true},
		{name: "trailing garbage", text: "100x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.text, tt.balance)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePaymentInfo(t *testing.T) {
	t.Run("accepts phone and name on two lines", func(t *testing.T) {
		phone, name, err := ParsePaymentInfo("09123456789\nAung Aung")

		require.NoError(t, err)
		assert.Equal(t, "09123456789", phone)
		assert.Equal(t, "Aung Aung", name)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		phone, name, err := ParsePaymentInfo("  09777888999 \n  Ma Ma  \n")

		require.NoError(t, err)
		assert.Equal(t, "09777888999", phone)
		assert.Equal(t, "Ma Ma", name)
	})

	t.Run("rejects a single line", func(t *testing.T) {
		_, _, err := ParsePaymentInfo("09123456789")
		assert.Error(t, err)
	})

	t.Run("rejects malformed phone numbers", func(t *testing.T) {
		for _, phone := range []string{
			"0912345678",    // too short
			"091234567890",  // too long
			"19123456789",   // wrong prefix
			"09abc456789",   // letters
			"+959123456789", // international form
		} {
			_, _, err := ParsePaymentInfo(phone + "\nAung Aung")
			assert.Error(t, err, phone)
		}
	})

	t.Run("rejects an empty account name", func(t *testing.T) {
		_, _, err := ParsePaymentInfo("09123456789\n   ")
		assert.Error(t, err)
	})
}

func TestParseUserID(t *testing.T) {
	id, err := ParseUserID("123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789012345678), id)

	_, err = ParseUserID("not-a-snowflake")
	assert.Error(t, err)
}
