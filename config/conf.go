package config

import (
	"context"

	"github.com/fatih/color"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Pink   = color.New(color.FgMagenta).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()

	Ctx = context.Background()

	// SeverityNames maps Nessus severity levels to their names.
	SeverityNames = map[int]string{
		4: "critical",
		3: "high",
		2: "medium",
		1: "low",
		0: "info",
	}

	SeverityMap = map[string]int{
		"critical": 4,
		"high":     3,
		"medium":   2,
		"low":      1,
		"info":     0,
	}
)

// SeverityName returns the name of a Nessus severity level.
func SeverityName(level int) string {
	if name, ok := SeverityNames[level]; ok {
		return name
	}
	return "unknown"
}
