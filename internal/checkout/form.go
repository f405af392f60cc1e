package checkout

import (
	"regexp"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/air593-booking/internal/common"
)

var (
	cardPattern   = regexp.MustCompile(`^\d{4} \d{4} \d{4} \d{4}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

// PaymentForm holds the card payment fields as typed by the user.
type PaymentForm struct {
	HolderName string `json:"holderName" validate:"required,min=3"`
	CardNumber string `json:"cardNumber" validate:"required,cardnumber"`
	Expiry     string `json:"expiry" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,cvv"`
	Email      string `json:"email" validate:"required,email"`
}

// FormPatch carries the fields changed by a keystroke. Nil fields are left alone.
type FormPatch struct {
	HolderName *string `json:"holderName"`
	CardNumber *string `json:"cardNumber"`
	Expiry     *string `json:"expiry"`
	CVV        *string `json:"cvv"`
	Email      *string `json:"email"`
}

var formFields = []string{"holderName", "cardNumber", "expiry", "cvv", "email"}

// apply formats and stores the patched values, returning the JSON names of
// the fields it touched.
func (p FormPatch) apply(f *PaymentForm) []string {
	var touched []string
	if p.HolderName != nil {
		f.HolderName = *p.HolderName
		touched = append(touched, "holderName")
	}
	if p.CardNumber != nil {
		f.CardNumber = FormatCardNumber(*p.CardNumber)
		touched = append(touched, "cardNumber")
	}
	if p.Expiry != nil {
		f.Expiry = FormatExpiry(*p.Expiry)
		touched = append(touched, "expiry")
	}
	if p.CVV != nil {
		f.CVV = DigitsOnly(*p.CVV)
		touched = append(touched, "cvv")
	}
	if p.Email != nil {
		f.Email = *p.Email
		touched = append(touched, "email")
	}
	return touched
}

// NewValidator returns a validator that knows the card field tags.
func NewValidator() *validator.Validate {
	v := common.NewValidator()
	mustRegister(v, "cardnumber", cardPattern)
	mustRegister(v, "expiry", expiryPattern)
	mustRegister(v, "cvv", cvvPattern)
	return v
}

func mustRegister(v *validator.Validate, tag string, re *regexp.Regexp) {
	if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber keeps at most 16 digits and groups them by four.
func FormatCardNumber(s string) string {
	digits := DigitsOnly(s)
	if len(digits) > 16 {
		digits = digits[:16]
	}
	return group(digits)
}

// FormatExpiry keeps at most four digits and inserts a slash after the month.
func FormatExpiry(s string) string {
	digits := DigitsOnly(s)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	if len(digits) > 2 {
		return digits[:2] + "/" + digits[2:]
	}
	return digits
}

// MaskCard renders the card digits in groups of four for display.
func MaskCard(s string) string {
	return group(DigitsOnly(s))
}

func group(digits string) string {
	parts := make([]string, 0, (len(digits)+3)/4)
	for i := 0; i < len(digits); i += 4 {
		end := i + 4
		if end > len(digits) {
			end = len(digits)
		}
		parts = append(parts, digits[i:end])
	}
	return strings.Join(parts, " ")
}
