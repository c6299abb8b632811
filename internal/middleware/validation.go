package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"agmipx/internal/dataset"
	apierrors "agmipx/internal/errors"
	"agmipx/internal/exporter"
	"agmipx/internal/reshape"
)

// Validator checks decoded request bodies against their struct tags
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the explorer's custom tags:
//
//	agmip_field     any schema field name
//	agmip_category  a field that can be filtered by selection
//	aggregation     a pivot aggregation
//	fill_method     a fill method
//	export_format   an export format
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("agmip_field", isField)
	v.RegisterValidation("agmip_category", isCategoricalField)
	v.RegisterValidation("aggregation", isAggregation)
	v.RegisterValidation("fill_method", isFillMethod)
	v.RegisterValidation("export_format", isExportFormat)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates v and returns an APIError listing every failed field
func (m *Validator) Struct(v interface{}) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Namespace(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// DecodeJSON decodes the request body into v and validates it. An empty
// body leaves v untouched before validation.
func (m *Validator) DecodeJSON(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return apierrors.InvalidRequestWithError(err)
	}
	return m.Struct(v)
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, param)
	case "agmip_field":
		return fmt.Sprintf("%s must be one of: %s", field, fieldNames(dataset.Fields))
	case "agmip_category":
		return fmt.Sprintf("%s must be one of: %s", field, fieldNames(dataset.CategoricalFields))
	case "aggregation":
		return fmt.Sprintf("%s must be a known aggregation", field)
	case "fill_method":
		return fmt.Sprintf("%s must be a known fill method", field)
	case "export_format":
		return fmt.Sprintf("%s must be a known export format", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func fieldNames(fields []dataset.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}

// Custom validators

func isField(fl validator.FieldLevel) bool {
	_, err := dataset.ParseField(fl.Field().String())
	return err == nil
}

func isCategoricalField(fl validator.FieldLevel) bool {
	f, err := dataset.ParseField(fl.Field().String())
	return err == nil && f.IsCategorical()
}

func isAggregation(fl validator.FieldLevel) bool {
	_, err := reshape.ParseAggregation(fl.Field().String())
	return err == nil
}

func isFillMethod(fl validator.FieldLevel) bool {
	_, err := reshape.ParseFillMethod(fl.Field().String())
	return err == nil
}

func isExportFormat(fl validator.FieldLevel) bool {
	_, err := exporter.ParseFormat(fl.Field().String())
	return err == nil
}
