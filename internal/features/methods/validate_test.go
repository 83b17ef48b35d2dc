package methods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/payout-bot/internal/common"
)

func TestNormalizeAccepts(t *testing.T) {
	cases := []AddInput{
		{Type: "upi", UPIID: "alice.k@okaxis"},
		{Type: TypeUPI, UPIID: " 98765-43210@ybl "},
		{Type: TypeBank, AccountNumber: "123456789", IFSCCode: "hdfc0001234"},
		{Type: TypeBank, AccountNumber: "123456789012345678", IFSCCode: "SBIN0ABC123"},
	}
	for _, in := range cases {
		out, err := in.Normalize()
		require.NoError(t, err, "%+v", in)
		assert.Contains(t, []Type{TypeUPI, TypeBank}, out.Type)
	}

	out, err := AddInput{Type: "bank", AccountNumber: "123456789", IFSCCode: "hdfc0001234"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "HDFC0001234", out.IFSCCode)
	assert.Equal(t, TypeBank, out.Type)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]AddInput{
		"no at":            {Type: TypeUPI, UPIID: "alice"},
		"short name":       {Type: TypeUPI, UPIID: "a@okaxis"},
		"digit psp":        {Type: TypeUPI, UPIID: "alice@1bank"},
		"upi with bank":    {Type: TypeUPI, UPIID: "alice@okaxis", IFSCCode: "HDFC0001234"},
		"short account":    {Type: TypeBank, AccountNumber: "12345678", IFSCCode: "HDFC0001234"},
		"long account":     {Type: TypeBank, AccountNumber: "1234567890123456789", IFSCCode: "HDFC0001234"},
		"letters account":  {Type: TypeBank, AccountNumber: "12345678A", IFSCCode: "HDFC0001234"},
		"ifsc fifth digit": {Type: TypeBank, AccountNumber: "123456789", IFSCCode: "HDFC1001234"},
		"bank with upi":    {Type: TypeBank, AccountNumber: "123456789", IFSCCode: "HDFC0001234", UPIID: "a@b"},
		"unknown type":     {Type: "PAYPAL", UPIID: "alice@okaxis"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := in.Normalize()
			assert.ErrorIs(t, err, common.ErrInvalidPayoutMethod)
		})
	}
}

func TestMaskAndDescribe(t *testing.T) {
	m := &Method{Type: TypeBank, AccountNumber: "123456789", IFSCCode: "HDFC0001234"}
	assert.Equal(t, "••••6789", m.View().AccountNumber)
	assert.Equal(t, "BANK ••••6789 (HDFC0001234)", m.Describe())
	assert.Equal(t, "UPI alice@okaxis", (&Method{Type: TypeUPI, UPIID: "alice@okaxis"}).Describe())
}
