package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cuemby/agent-snapper/pkg/types"
)

// validSnapName follows snapd's naming rules: lowercase letters, digits and
// single hyphens, starting with a letter or digit.
var validSnapName = regexp.MustCompile(`^[a-z0-9](?:-?[a-z0-9])*$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := registerValidations(validate); err != nil {
		panic(fmt.Sprintf("failed to register validations: %v", err))
	}
}

func registerValidations(v *validator.Validate) error {
	return v.RegisterValidation("snapname", validateSnapName)
}

func validateSnapName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return len(value) <= 40 && validSnapName.MatchString(value)
}

// ValidateSpec checks a PackageSpec before an engine is built around it
func ValidateSpec(spec types.PackageSpec) error {
	if err := validate.Struct(spec); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	var messages []string
	for _, e := range errs {
		messages = append(messages, formatFieldError(e))
	}
	return fmt.Errorf("invalid package spec: %s", strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "snapname":
		return fmt.Sprintf("%s %q is not a valid snap name", field, e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// NewSpec builds and validates a PackageSpec for name. Empty channel and
// confinement fall back to the stable channel and classic confinement.
func NewSpec(name string, variant types.Variant, channel string, confinement types.Confinement, extraRequired []string) (types.PackageSpec, error) {
	if channel == "" {
		channel = types.DefaultChannel
	}
	if confinement == "" {
		confinement = types.ConfinementClassic
	}
	if variant == "" {
		variant = types.VariantPrefixed
	}

	spec := types.PackageSpec{
		Name:          name,
		BaseRequired:  append([]string(nil), types.DefaultRequiredKeys...),
		ExtraRequired: append([]string(nil), extraRequired...),
		Channel:       channel,
		Confinement:   confinement,
		Variant:       variant,
	}
	if err := ValidateSpec(spec); err != nil {
		return types.PackageSpec{}, err
	}
	return spec, nil
}
