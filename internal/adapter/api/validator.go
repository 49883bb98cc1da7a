package api

import (
	"github.com/go-playground/validator/v10"

	"seedbazaar/internal/adapter/dto"
)

// Validator plugs the shared go-playground validator into echo.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: dto.Validator()}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
