// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strings"
)

// ValidationError holds the list of settings validation failures.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks the loaded settings tree and returns a
// ValidationError describing every problem found.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateIngestSettings(&settings.Ingest); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDetectorSettings(&settings.Detector); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAlertingSettings(&settings.Alerting); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateIngestSettings(s *IngestSettings) error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be greater than 0")
	}
	if s.TargetRate <= 0 {
		return fmt.Errorf("ingest target rate must be greater than 0")
	}
	if s.RetryAttempts < 1 {
		return fmt.Errorf("ingest retry attempts must be at least 1")
	}
	return nil
}

func validateDetectorSettings(s *DetectorSettings) error {
	if s.Interval <= 0 {
		return fmt.Errorf("detector interval must be greater than 0")
	}
	if s.Contamination <= 0 || s.Contamination >= 1 {
		return fmt.Errorf("detector contamination must be in (0, 1), got %g", s.Contamination)
	}
	if s.MinSamples < 2 {
		return fmt.Errorf("detector minimum sample count must be at least 2")
	}
	if s.Neighbors < 1 {
		return fmt.Errorf("detector neighbor count must be at least 1")
	}
	return nil
}

func validateClassifierSettings(s *ClassifierSettings) error {
	if s.Interval <= 0 {
		return fmt.Errorf("classifier interval must be greater than 0")
	}
	if s.LearningRate <= 0 || s.LearningRate > 1 {
		return fmt.Errorf("classifier learning rate must be in (0, 1], got %g", s.LearningRate)
	}
	return nil
}

func validateAlertingSettings(s *AlertingSettings) error {
	if s.Cooldown <= 0 {
		return fmt.Errorf("alert cooldown must be greater than 0")
	}
	return nil
}

func validateOutputSettings(s *OutputSettings) error {
	if !s.SQLite.Enabled && !s.MySQL.Enabled {
		return fmt.Errorf("at least one output store must be enabled")
	}
	if s.SQLite.Enabled && s.SQLite.Path == "" {
		return fmt.Errorf("sqlite output requires a path")
	}
	if s.MySQL.Enabled {
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return fmt.Errorf("mysql output requires host and database")
		}
	}
	return nil
}
