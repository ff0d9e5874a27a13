package humanizer

import (
	"fmt"
	"time"

	"github.com/maazshahbaz/ai-humanizer/internal/errs"
)

// Readability is the target reading level of the rewritten text.
type Readability string

const (
	ReadabilityElementary   Readability = "Elementary"
	ReadabilityMiddleSchool Readability = "Middle School"
	ReadabilityHighSchool   Readability = "High School"
	ReadabilityUniversity   Readability = "University"
	ReadabilityGraduate     Readability = "Graduate"
)

// Purpose is the genre the provider tunes the rewrite for.
type Purpose string

const (
	PurposeGeneral  Purpose = "General Writing"
	PurposeEssay    Purpose = "Essay"
	PurposeEmail    Purpose = "Email"
	PurposeCreative Purpose = "Creative Writing"
	PurposeBusiness Purpose = "Business"
)

// Strength trades detector evasion against faithfulness to the input.
type Strength string

const (
	StrengthMoreHuman    Strength = "More Human"
	StrengthBalanced     Strength = "Balanced"
	StrengthMoreOriginal Strength = "More Original"
)

// Options tunes a single rewrite. Zero values fall back to client defaults.
type Options struct {
	Readability Readability
	Purpose     Purpose
	Strength    Strength
	Model       string

	PollInterval time.Duration
	MaxAttempts  int
}

func (o Options) withDefaults(model string) Options {
	if o.Readability == "" {
		o.Readability = ReadabilityHighSchool
	}
	if o.Purpose == "" {
		o.Purpose = PurposeGeneral
	}
	if o.Strength == "" {
		o.Strength = StrengthMoreHuman
	}
	if o.Model == "" {
		o.Model = model
	}
	return o
}

// Validate rejects values outside the provider's enumerations. Empty fields are allowed.
func (o Options) Validate() error {
	switch o.Readability {
	case "", ReadabilityElementary, ReadabilityMiddleSchool, ReadabilityHighSchool,
		ReadabilityUniversity, ReadabilityGraduate:
	default:
		return fmt.Errorf("%w: unknown readability %q", errs.ErrValidation, o.Readability)
	}
	switch o.Purpose {
	case "", PurposeGeneral, PurposeEssay, PurposeEmail, PurposeCreative, PurposeBusiness:
	default:
		return fmt.Errorf("%w: unknown purpose %q", errs.ErrValidation, o.Purpose)
	}
	switch o.Strength {
	case "", StrengthMoreHuman, StrengthBalanced, StrengthMoreOriginal:
	default:
		return fmt.Errorf("%w: unknown strength %q", errs.ErrValidation, o.Strength)
	}
	return nil
}
