// Package numerator defines the sequence-allocation contract used for
// generated item codes and document numbers.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict allocates every number with one UPSERT ... RETURNING.
	// Gap-free; use for document numbers.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers and hands them out from memory.
	// May leave gaps after a restart; fine for item codes.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// ParseStrategy maps a config value ("strict", "cached") to a Strategy.
func ParseStrategy(s string) Strategy {
	if s == "cached" {
		return StrategyCached
	}
	return StrategyStrict
}

// Config holds numbering configuration for one sequence.
type Config struct {
	// Prefix added to all numbers (e.g. "ISS", "RM")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum width of the numeric part (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DocumentConfig is used for issue bill numbers: ISS-00001, never reset.
func DocumentConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    5,
		ResetPeriod: "never",
	}
}

// ItemCodeConfig is used for generated item codes: one sequence per
// category prefix, e.g. RM-00001, CON-00001.
func ItemCodeConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    5,
		ResetPeriod: "never",
	}
}
