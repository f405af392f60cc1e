package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/common"
)

func TestFormatCardNumber(t *testing.T) {
	require.Equal(t, "", FormatCardNumber(""))
	require.Equal(t, "4111", FormatCardNumber("4111"))
	require.Equal(t, "4111 1", FormatCardNumber("41111"))
	require.Equal(t, "4111 1111 1111 1111", FormatCardNumber("4111-1111 1111 1111"))
	require.Equal(t, "4111 1111 1111 1111", FormatCardNumber("41111111111111112222"))
}

func TestFormatExpiry(t *testing.T) {
	require.Equal(t, "1", FormatExpiry("1"))
	require.Equal(t, "12", FormatExpiry("12"))
	require.Equal(t, "12/3", FormatExpiry("123"))
	require.Equal(t, "12/34", FormatExpiry("1a2/3456"))
}

func TestDigitsOnlyAndMask(t *testing.T) {
	require.Equal(t, "123", DigitsOnly("1x2 3"))
	require.Equal(t, "", DigitsOnly("abc"))
	require.Equal(t, "4111 1111 1111 1111", MaskCard("4111111111111111"))
	require.Equal(t, "", MaskCard(""))
}

func TestPaymentFormValidation(t *testing.T) {
	v := NewValidator()
	valid := PaymentForm{
		HolderName: "Ana Torres",
		CardNumber: "4111 1111 1111 1111",
		Expiry:     "09/27",
		CVV:        "123",
		Email:      "ana@air593.travel",
	}
	require.NoError(t, v.Struct(valid))

	bad := valid
	bad.CardNumber = "4111 1111 1111 111"
	bad.Expiry = "13/27"
	bad.CVV = "12"
	bad.HolderName = "Al"
	bad.Email = "ana"
	require.Equal(t, map[string]string{
		"cardNumber": "cardnumber",
		"expiry":     "expiry",
		"cvv":        "cvv",
		"holderName": "min",
		"email":      "email",
	}, common.FieldErrors(v.Struct(bad)))

	require.Equal(t, map[string]string{
		"cardNumber": "required",
		"expiry":     "required",
		"cvv":        "required",
		"holderName": "required",
		"email":      "required",
	}, common.FieldErrors(v.Struct(PaymentForm{})))
}

func TestFormPatchFormatsFields(t *testing.T) {
	var f PaymentForm
	card, expiry, cvv := "4111111111111111", "0927", "1a23"
	touched := FormPatch{CardNumber: &card, Expiry: &expiry, CVV: &cvv}.apply(&f)
	require.Equal(t, []string{"cardNumber", "expiry", "cvv"}, touched)
	require.Equal(t, "4111 1111 1111 1111", f.CardNumber)
	require.Equal(t, "09/27", f.Expiry)
	require.Equal(t, "123", f.CVV)
}
