// internal/pkg/validation/validation.go
package validation

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/domain/banner"
	"github.com/drinksharbour/drinksharbour-api/internal/domain/cart"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Coupon codes are matched case-insensitively and stored uppercase
var couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,32}$`)

var custom = map[string]validator.Func{
	"abv":         validateABV,
	"cartkey":     validateCartKey,
	"coupon_code": validateCouponCode,
	"placement":   validatePlacement,
}

// Register adds the marketplace tags to v
func Register(v *validator.Validate) error {
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	v.RegisterTagNameFunc(jsonFieldName)
	return nil
}

// RegisterGin adds the marketplace tags to gin's default binding validator
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Messages flattens validator errors into field -> message pairs
func Messages(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "abv":
		return "must be between 0 and 100 with at most two decimals"
	case "cartkey":
		return "must look like productId-size-vendorId-color"
	case "coupon_code":
		return "must be 3 to 32 letters, digits or dashes"
	case "placement":
		return "is not a known banner placement"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func validateABV(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		v := f.Float()
		if v < 0 || v > 100 {
			return false
		}
		cents := v * 100
		return math.Abs(cents-math.Round(cents)) < 1e-6
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := f.Int()
		return v >= 0 && v <= 100
	default:
		return false
	}
}

func validateCartKey(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := cart.ParseItemKey(fl.Field().String())
	return err == nil
}

func validateCouponCode(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return couponCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validatePlacement(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return banner.ValidPlacement(fl.Field().String())
}

func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}
