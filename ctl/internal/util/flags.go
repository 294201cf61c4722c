package util

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// SizeSliceVar defines a `[]uint64` flag that accepts a comma separated list of human-readable
// sizes (e.g., "4KiB,2MiB") and converts them into bytes. An empty default value results in an
// empty slice.
//
// Panics if the default value cannot be parsed.
func SizeSliceVar(flags *pflag.FlagSet, p *[]uint64, name string, shorthand string, defaultValue string, usage string) {
	sf := &sizeSliceFlag{p: p}
	if defaultValue != "" {
		if err := sf.Set(defaultValue); err != nil {
			panic(fmt.Sprintf("error setting default value (this is a bug): %s", err.Error()))
		}
	}
	sf.changed = false
	flags.VarP(sf, name, shorthand, usage)
}

type sizeSliceFlag struct {
	p       *[]uint64
	changed bool
}

func (f *sizeSliceFlag) String() string {
	if f.p == nil {
		return ""
	}
	sizes := make([]string, 0, len(*f.p))
	for _, v := range *f.p {
		sizes = append(sizes, FormatBytes(v, true))
	}
	return strings.Join(sizes, ",")
}

func (f *sizeSliceFlag) Type() string {
	return "<size>[,<size>]..."
}

// Set replaces the default on first use and appends afterwards, so the flag can either be
// repeated or given a comma separated list.
func (f *sizeSliceFlag) Set(value string) error {
	parsed := []uint64{}
	for _, s := range strings.Split(value, ",") {
		size, err := ParseSize(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("error parsing size %q: %w", s, err)
		}
		parsed = append(parsed, size)
	}
	if !f.changed {
		*f.p = parsed
		f.changed = true
	} else {
		*f.p = append(*f.p, parsed...)
	}
	return nil
}

// ValidatedStringFlag defines a flag that only accepts one of the allowed strings. Intended to be
// used with typed constants that satisfy the stringer interface. Allowed strings should by all
// lowercase and the user provided string will be converted to lowercase before checking it is one
// of the allowed strings.
func ValidatedStringFlag(allowed []fmt.Stringer, defaultValue fmt.Stringer) *validatedStringFlag {
	return &validatedStringFlag{
		value:   defaultValue,
		allowed: allowed,
	}
}

type validatedStringFlag struct {
	value   fmt.Stringer
	allowed []fmt.Stringer
}

func (f *validatedStringFlag) String() string {
	return f.value.String()
}

func (f *validatedStringFlag) Set(val string) error {
	val = strings.ToLower(val)
	for _, allowed := range f.allowed {
		if val == allowed.String() {
			f.value = allowed
			return nil
		}
	}
	return fmt.Errorf("invalid value: %q (allowed: %v)", val, f.allowed)
}

func (v *validatedStringFlag) Type() string {
	return "string"
}

// Value returns the currently selected option.
func (v *validatedStringFlag) Value() fmt.Stringer {
	return v.value
}
