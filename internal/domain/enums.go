package domain

import (
	"slices"
	"strings"
)

// Color identifies one stage accent color.
type Color string

// Color values.
const (
	ColorBlue   Color = "blue"
	ColorIndigo Color = "indigo"
	ColorPurple Color = "purple"
	ColorGreen  Color = "green"
	ColorGray   Color = "gray"
)

var validColors = []Color{ColorBlue, ColorIndigo, ColorPurple, ColorGreen, ColorGray}

// Priority identifies how urgently a deal needs attention.
type Priority string

// Priority values.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Temperature identifies how engaged a lead currently is.
type Temperature string

// Temperature values.
const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

var validTemperatures = []Temperature{TemperatureCold, TemperatureWarm, TemperatureHot}

// NormalizeColor canonicalizes one color value.
func NormalizeColor(c Color) Color {
	return Color(strings.TrimSpace(strings.ToLower(string(c))))
}

// IsValidColor reports whether a color is supported.
func IsValidColor(c Color) bool {
	return slices.Contains(validColors, NormalizeColor(c))
}

// Colors returns every supported color in display order.
func Colors() []Color {
	return slices.Clone(validColors)
}

// NormalizePriority canonicalizes one priority value.
func NormalizePriority(p Priority) Priority {
	return Priority(strings.TrimSpace(strings.ToLower(string(p))))
}

// IsValidPriority reports whether a priority is supported.
func IsValidPriority(p Priority) bool {
	return slices.Contains(validPriorities, NormalizePriority(p))
}

// Priorities returns every supported priority from highest to lowest.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// NormalizeTemperature canonicalizes one temperature value.
func NormalizeTemperature(t Temperature) Temperature {
	return Temperature(strings.TrimSpace(strings.ToLower(string(t))))
}

// IsValidTemperature reports whether a temperature is supported.
func IsValidTemperature(t Temperature) bool {
	return slices.Contains(validTemperatures, NormalizeTemperature(t))
}
