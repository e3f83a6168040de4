package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"bggstats/internal/components/telemetry"
	"bggstats/internal/export"
	"bggstats/internal/scrapers/bgg"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultUsername  = "Percy0715"
	DefaultFetch     = 5000
	DefaultBatchSize = 100
	DefaultOutput    = "PlayerCountDataList"
)

// Config is everything a run needs, the json names are the ones used in
// configuration files and error messages.
type Config struct {
	Username   string        `json:"username" validate:"required"`
	Fetch      int           `json:"fetch" validate:"gte=0"`
	BatchSize  int           `json:"batch_size" validate:"gt=0"`
	Output     string        `json:"output" validate:"required"`
	OutputType export.Format `json:"output_type" validate:"oneof=csv json sqlite"`
	Workers    int           `json:"workers" validate:"gte=1,lte=16"`

	// Session configures how BGG is contacted, its Workers field is overwritten
	// by the field above.
	Session   bgg.SessionOptions `json:"-" validate:"-"`
	Telemetry telemetry.API      `json:"-" validate:"-"`
}

// DefaultConfig matches the defaults of the command line.
func DefaultConfig() Config {
	return Config{
		Username:   DefaultUsername,
		Fetch:      DefaultFetch,
		BatchSize:  DefaultBatchSize,
		Output:     DefaultOutput,
		OutputType: export.FormatCSV,
		Workers:    1,
		Session:    bgg.DefaultSessionOptions(),
	}
}

var validate = func() *validator.Validate {
	v := validator.New()
	// use json tag names for field names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})
	return v
}()

// Validate checks the config and lists every offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var problems []string
	for _, e := range validationErrs {
		problems = append(problems, fmt.Sprintf("%s %s", e.Field(), friendlyMessage(e)))
	}
	slices.Sort(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	}
	return "is invalid"
}
