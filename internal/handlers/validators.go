package handlers

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"veriboard/internal/authz"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags and reports json field names in errors.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("accounttype", func(fl validator.FieldLevel) bool {
			return authz.IsSelfRegistrable(fl.Field().String())
		})
		_ = v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
			return isOTPCode(fl.Field().String())
		})
	})
}

func isOTPCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
