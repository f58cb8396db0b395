// Package validation provides struct tag and programmatic validation.
//
// Both forms report failures as an INVALID_ARGUMENT *errors.AppError whose
// "fields" detail lists every failing field. Storage and observability
// configs validate through tags; entities that implement entity.Validating
// typically use the programmatic Validator.
//
//	v := validation.New()
//	v.Required("name", u.Name).MaxLength("name", u.Name, 64)
//	if err := v.Validate(); err != nil { ... }
package validation
