package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

// Occasion biases look generation. Values follow the app's pt-BR labels.
type Occasion string

const (
	OccasionCasual   Occasion = "casual"
	OccasionTrabalho Occasion = "trabalho"
	OccasionFesta    Occasion = "festa"
	OccasionEncontro Occasion = "encontro"
	OccasionFormal   Occasion = "formal"
	OccasionEsporte  Occasion = "esporte"
	OccasionViagem   Occasion = "viagem"
)

var occasionRule = regexp.MustCompile("^(casual|trabalho|festa|encontro|formal|esporte|viagem)$")

func (o *Occasion) Scan(value interface{}) error {
	*o = Occasion(value.(string))
	return nil
}

func (o Occasion) Value() (string, error) {
	return string(o), nil
}

func ScanOccasion(value string) Occasion {
	return Occasion(value)
}

func ValidateOccasion(fl validator.FieldLevel) bool {
	return occasionRule.MatchString(fl.Field().String())
}

func ValidateOccasionRaw(value string) bool {
	return occasionRule.MatchString(value)
}
