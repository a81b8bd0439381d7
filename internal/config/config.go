package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/banshee-data/collision.report/internal/collision"
	"github.com/banshee-data/collision.report/internal/timeutil"
)

// DefaultConfigPath is the path to the canonical defaults file.
// This is the single source of truth for all default report settings.
const DefaultConfigPath = "config/collision.defaults.json"

// EnvPrefix is prepended to every environment override, e.g.
// COLLISION_TOP_N=15.
const EnvPrefix = "COLLISION"

// Config holds the settings for one report run. Every field is optional;
// the Get* methods supply defaults for anything left unset, so partial
// files are safe.
type Config struct {
	InputPath *string `json:"input_path,omitempty" envconfig:"INPUT_PATH" validate:"omitempty,min=1"`
	OutputDir *string `json:"output_dir,omitempty" envconfig:"OUTPUT_DIR" validate:"omitempty,min=1"`
	// DBPath enables the sqlite run history. Empty disables it.
	DBPath *string `json:"db_path,omitempty" envconfig:"DB_PATH"`

	TopN     *int    `json:"top_n,omitempty" envconfig:"TOP_N" validate:"omitempty,min=1,max=100"`
	Timezone *string `json:"timezone,omitempty" envconfig:"TIMEZONE"`

	// Severity map sampling.
	SampleSize *int    `json:"sample_size,omitempty" envconfig:"SAMPLE_SIZE" validate:"omitempty,min=0"`
	SampleSeed *uint64 `json:"sample_seed,omitempty" envconfig:"SAMPLE_SEED"`

	// HeatCellDegrees is the lat/lon grid size of the density heatmap.
	HeatCellDegrees *float64 `json:"heat_cell_degrees,omitempty" envconfig:"HEAT_CELL_DEGREES" validate:"omitempty,gt=0,lte=1"`

	DecompositionPeriod *int    `json:"decomposition_period,omitempty" envconfig:"DECOMPOSITION_PERIOD" validate:"omitempty,min=2"`
	DecompositionModel  *string `json:"decomposition_model,omitempty" envconfig:"DECOMPOSITION_MODEL" validate:"omitempty,oneof=additive multiplicative"`

	SkipUnparseable *bool `json:"skip_unparseable,omitempty" envconfig:"SKIP_UNPARSEABLE"`

	// CategoryNormalization maps a categorical field name to a label
	// rewrite table. Empty by default: labels are charted verbatim.
	CategoryNormalization map[string]map[string]string `json:"category_normalization,omitempty" ignored:"true"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyConfig returns a Config with all fields set to nil.
// Use LoadConfig to load actual values from the defaults file.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field populated from the Get*
// defaults. It matches DefaultConfigPath.
func DefaultConfig() *Config {
	c := EmptyConfig()
	return &Config{
		InputPath:           ptrString(c.GetInputPath()),
		OutputDir:           ptrString(c.GetOutputDir()),
		DBPath:              ptrString(c.GetDBPath()),
		TopN:                ptrInt(c.GetTopN()),
		Timezone:            ptrString(c.GetTimezone()),
		SampleSize:          ptrInt(c.GetSampleSize()),
		SampleSeed:          ptrUint64(c.GetSampleSeed()),
		HeatCellDegrees:     ptrFloat64(c.GetHeatCellDegrees()),
		DecompositionPeriod: ptrInt(c.GetDecompositionPeriod()),
		DecompositionModel:  ptrString(c.GetDecompositionModel()),
		SkipUnparseable:     ptrBool(c.GetSkipUnparseable()),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays COLLISION_* environment variables onto c. Unset
// variables leave the corresponding field untouched.
func (c *Config) ApplyEnv() error {
	var env Config
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to load config from env: %w", err)
	}
	c.Merge(&env)
	return c.Validate()
}

// Merge copies every non-nil field of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.InputPath != nil {
		c.InputPath = other.InputPath
	}
	if other.OutputDir != nil {
		c.OutputDir = other.OutputDir
	}
	if other.DBPath != nil {
		c.DBPath = other.DBPath
	}
	if other.TopN != nil {
		c.TopN = other.TopN
	}
	if other.Timezone != nil {
		c.Timezone = other.Timezone
	}
	if other.SampleSize != nil {
		c.SampleSize = other.SampleSize
	}
	if other.SampleSeed != nil {
		c.SampleSeed = other.SampleSeed
	}
	if other.HeatCellDegrees != nil {
		c.HeatCellDegrees = other.HeatCellDegrees
	}
	if other.DecompositionPeriod != nil {
		c.DecompositionPeriod = other.DecompositionPeriod
	}
	if other.DecompositionModel != nil {
		c.DecompositionModel = other.DecompositionModel
	}
	if other.SkipUnparseable != nil {
		c.SkipUnparseable = other.SkipUnparseable
	}
	if len(other.CategoryNormalization) > 0 {
		c.CategoryNormalization = other.CategoryNormalization
	}
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("%s", formatValidationError(verrs[0]))
		}
		return err
	}

	if c.Timezone != nil && *c.Timezone != "" && !timeutil.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("timezone %q is not a valid IANA zone", *c.Timezone)
	}

	for name, mapping := range c.CategoryNormalization {
		f, ok := collision.LookupField(name)
		if !ok || !f.IsCategorical() {
			return fmt.Errorf("category_normalization: %w", &collision.InvalidFieldError{Field: name})
		}
		for from := range mapping {
			if strings.TrimSpace(from) == "" {
				return fmt.Errorf("category_normalization[%s]: empty source label", name)
			}
		}
	}
	return nil
}

func formatValidationError(err validator.FieldError) string {
	field, param := err.Field(), err.Param()
	switch err.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Replace(param, " ", ", ", -1))
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// GetInputPath returns the input_path value or the default.
func (c *Config) GetInputPath() string {
	if c.InputPath == nil {
		return "Motor_Vehicle_Collisions_-_Crashes.csv"
	}
	return *c.InputPath
}

// GetOutputDir returns the output_dir value or the default.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "out"
	}
	return *c.OutputDir
}

// GetDBPath returns the db_path value. Empty means no run history.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetTopN returns the top_n value or the default.
func (c *Config) GetTopN() int {
	if c.TopN == nil {
		return 10
	}
	return *c.TopN
}

// GetTimezone returns the timezone value or the default.
func (c *Config) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return timeutil.DefaultTimezone
	}
	return *c.Timezone
}

// GetSampleSize returns the sample_size value or the default.
func (c *Config) GetSampleSize() int {
	if c.SampleSize == nil {
		return 1000
	}
	return *c.SampleSize
}

// GetSampleSeed returns the sample_seed value or the default.
func (c *Config) GetSampleSeed() uint64 {
	if c.SampleSeed == nil {
		return 42
	}
	return *c.SampleSeed
}

// GetHeatCellDegrees returns the heat_cell_degrees value or the default.
func (c *Config) GetHeatCellDegrees() float64 {
	if c.HeatCellDegrees == nil {
		return 0.01
	}
	return *c.HeatCellDegrees
}

// GetDecompositionPeriod returns the decomposition_period value or the default.
func (c *Config) GetDecompositionPeriod() int {
	if c.DecompositionPeriod == nil {
		return 365
	}
	return *c.DecompositionPeriod
}

// GetDecompositionModel returns the decomposition_model value or the default.
func (c *Config) GetDecompositionModel() string {
	if c.DecompositionModel == nil || *c.DecompositionModel == "" {
		return "additive"
	}
	return *c.DecompositionModel
}

// GetSkipUnparseable returns the skip_unparseable value or the default.
func (c *Config) GetSkipUnparseable() bool {
	if c.SkipUnparseable == nil {
		return true
	}
	return *c.SkipUnparseable
}

// GetCategoryNormalization returns the rewrite tables keyed by field.
// Unknown field names were rejected by Validate.
func (c *Config) GetCategoryNormalization() map[collision.Field]map[string]string {
	out := make(map[collision.Field]map[string]string, len(c.CategoryNormalization))
	for name, mapping := range c.CategoryNormalization {
		if f, ok := collision.LookupField(name); ok && len(mapping) > 0 {
			out[f] = mapping
		}
	}
	return out
}
