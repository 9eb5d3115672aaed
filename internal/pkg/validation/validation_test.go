package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ABV       *float64 `json:"abv" validate:"omitempty,abv"`
	Key       string   `json:"key" validate:"omitempty,cartkey"`
	Code      string   `json:"code" validate:"omitempty,coupon_code"`
	Placement string   `json:"placement" validate:"omitempty,placement"`
	Email     string   `json:"email" validate:"omitempty,email"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Register(v))
	return v
}

func ptr(f float64) *float64 { return &f }

func TestCustomTags(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		in    sample
		field string
	}{
		{"valid abv", sample{ABV: ptr(13.5)}, ""},
		{"abv over 100", sample{ABV: ptr(100.5)}, "abv"},
		{"abv three decimals", sample{ABV: ptr(4.125)}, "abv"},
		{"negative abv", sample{ABV: ptr(-1)}, "abv"},
		{"valid key", sample{Key: "12-750ml-3-red"}, ""},
		{"key without color", sample{Key: "12-6-pack-3-"}, ""},
		{"key missing vendor", sample{Key: "12-750ml"}, "key"},
		{"valid code", sample{Code: "summer-25"}, ""},
		{"short code", sample{Code: "AB"}, "code"},
		{"code with space", sample{Code: "TEN OFF"}, "code"},
		{"valid placement", sample{Placement: "home_hero"}, ""},
		{"unknown placement", sample{Placement: "footer"}, "placement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			msgs := Messages(err)
			assert.Contains(t, msgs, tt.field)
		})
	}
}

func TestMessagesUseJSONNames(t *testing.T) {
	v := newValidator(t)
	err := v.Struct(sample{Email: "not-an-email", Code: "X"})
	require.Error(t, err)

	msgs := Messages(err)
	assert.Equal(t, "must be a valid email address", msgs["email"])
	assert.Equal(t, "must be 3 to 32 letters, digits or dashes", msgs["code"])
	assert.Nil(t, Messages(assert.AnError))
}
