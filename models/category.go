package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

// Category constrains how items combine into a look: every look carries one
// superior, one inferior, one sapato and any number of acessorio items.
type Category string

const (
	CategorySuperior  Category = "superior"
	CategoryInferior  Category = "inferior"
	CategorySapato    Category = "sapato"
	CategoryAcessorio Category = "acessorio"
)

var categoryRule = regexp.MustCompile("^(superior|inferior|sapato|acessorio)$")

func (c *Category) Scan(value interface{}) error {
	*c = Category(value.(string))
	return nil
}

func (c Category) Value() (string, error) {
	return string(c), nil
}

func ScanCategory(value string) Category {
	return Category(value)
}

func ValidateCategory(fl validator.FieldLevel) bool {
	return categoryRule.MatchString(fl.Field().String())
}

func ValidateCategoryRaw(value string) bool {
	return categoryRule.MatchString(value)
}
