package param

import "strings"

// Builder provides a fluent API for creating parameters
type Builder struct {
	param *Parameter
}

// New creates a new parameter builder with a 0-1 range.
func New(id uint32, name string) *Builder {
	return &Builder{
		param: &Parameter{
			ID:        id,
			Name:      name,
			ShortName: name,
			Min:       0,
			Max:       1,
			Flags:     CanAutomate,
		},
	}
}

// ShortName sets the short name
func (b *Builder) ShortName(name string) *Builder {
	b.param.ShortName = name
	return b
}

// Range sets the plain min and max values
func (b *Builder) Range(min, max float64) *Builder {
	b.param.Min = min
	b.param.Max = max
	return b
}

// Default sets the default in plain units.
func (b *Builder) Default(plain float64) *Builder {
	b.param.DefaultValue = b.param.Normalize(plain)
	return b
}

// Unit sets the unit string
func (b *Builder) Unit(unit string) *Builder {
	b.param.Unit = unit
	return b
}

// Toggle makes an on/off parameter.
func (b *Builder) Toggle() *Builder {
	b.param.Min, b.param.Max = 0, 1
	b.param.StepCount = 1
	return b.Formatter(OnOffFormatter, OnOffParser)
}

// ReadOnly marks the parameter as read-only and not automatable.
func (b *Builder) ReadOnly() *Builder {
	b.param.Flags |= IsReadOnly
	b.param.Flags &^= CanAutomate
	return b
}

// Bypass marks this as the bypass parameter
func (b *Builder) Bypass() *Builder {
	b.param.Flags |= IsBypass
	return b
}

// Formatter sets custom value formatting and parsing in plain units.
func (b *Builder) Formatter(format func(float64) string, parse func(string) (float64, error)) *Builder {
	b.param.formatFunc = format
	b.param.parseFunc = parse
	return b
}

// Build returns the parameter initialized to its default.
func (b *Builder) Build() *Parameter {
	b.param.SetValue(b.param.DefaultValue)
	return b.param
}

// Gain creates a -80 to +12 dB gain parameter defaulting to 0 dB.
func Gain(id uint32, name string) *Builder {
	return New(id, name).
		Range(-80, 12).
		Default(0).
		Unit("dB").
		Formatter(func(db float64) string {
			if db <= -80 {
				return "-∞ dB"
			}
			return DecibelFormatter(db)
		}, func(s string) (float64, error) {
			if strings.Contains(strings.ToLower(s), "inf") || strings.Contains(s, "∞") {
				return -80, nil
			}
			return DecibelParser(s)
		})
}

// Percent creates a 0-100% parameter.
func Percent(id uint32, name string, defaultPct float64) *Builder {
	return New(id, name).
		Range(0, 100).
		Default(defaultPct).
		Unit("%").
		Formatter(PercentFormatter, PercentParser)
}
