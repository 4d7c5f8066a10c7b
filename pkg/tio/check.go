package tio

import (
	"fmt"
	"strings"
)

// UnexpectedValueError is returned for an argument outside its allowed values.
type UnexpectedValueError struct {
	Name    string
	Value   interface{}
	Choices []string
}

func (e *UnexpectedValueError) Error() string {
	if len(e.Choices) == 0 {
		return fmt.Sprintf("tio: %s has an unexpected value %v", e.Name, e.Value)
	}
	return fmt.Sprintf("tio: %s has value %v, expected one of %s",
		e.Name, e.Value, strings.Join(e.Choices, ", "))
}

func checkString(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &UnexpectedValueError{Name: name, Value: fmt.Sprintf("%q", value)}
	}
	return nil
}

func checkChoice(name, value string, choices ...string) error {
	for _, c := range choices {
		if value == c {
			return nil
		}
	}
	return &UnexpectedValueError{Name: name, Value: value, Choices: choices}
}
