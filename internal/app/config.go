package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ScenePath       string   `validate:"required"`
	DefinitionPaths []string `validate:"required,min=1,dive,required"`
	// ConfigPath is the bridge settings file. Empty uses the defaults.
	ConfigPath string
	// CacheDir, when set, keeps cook results in a BadgerDB there.
	CacheDir string

	LogFormat       string        `validate:"oneof=text json"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	HealthcheckPort int           `validate:"gte=0,lte=65535"`
	TickInterval    time.Duration `validate:"gt=0"`
	// Watch keeps the app running and reloads definitions when they change.
	// Without it the app exits once the scene is cooked.
	Watch bool
}

var configValidate = validator.New()

func NewConfig(cfg Config) (*Config, error) {
	if err := configValidate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return nil, fmt.Errorf("invalid configuration:\n- %s", strings.Join(msgs, "\n- "))
	}
	return &cfg, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return fmt.Sprintf("%s is a required configuration field and cannot be empty", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed the '%s' check (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
}
