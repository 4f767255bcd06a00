package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json names ("gross", not "Gross").
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := generic.ParseDate(fl.Field().String())
		return err == nil
	})
	validate.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
}

// FieldError is one failed rule of a request body.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
// On failure it writes a 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{
					Field: strings.TrimPrefix(fe.Namespace(), rootName(dst)+"."),
					Rule:  fe.Tag(),
					Param: fe.Param(),
				})
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "validation",
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func rootName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// dec parses a field that already passed the "decimal" rule. Empty is zero.
func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// date parses a field that already passed the "date" rule. Empty is the zero
// TimePoint.
func date(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}
