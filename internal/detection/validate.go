package detection

import (
	"fmt"
	"strconv"
)

// ValidateConfiguration compares the serial configuration in use with the
// one detected for the meter. Each detected field that is known and differs
// produces one issue and one suggestion naming the value to switch to.
func ValidateConfiguration(current CommConfig, detected DetectedParams) ValidationResult {
	res := ValidationResult{
		Issues:      []string{},
		Suggestions: []string{},
	}

	if detected.Baud != 0 && detected.Baud != current.Baud {
		res.Issues = append(res.Issues,
			fmt.Sprintf("Baud rate mismatch: using %d, detected %d", current.Baud, detected.Baud))
		res.Suggestions = append(res.Suggestions, "Change baud rate to "+strconv.Itoa(detected.Baud))
	}

	if detected.Parity != "" && detected.Parity != current.Parity {
		res.Issues = append(res.Issues,
			fmt.Sprintf("Parity mismatch: using %s, detected %s", current.Parity, detected.Parity))
		res.Suggestions = append(res.Suggestions, "Change parity to "+detected.Parity)
	}

	if detected.Invert != nil && *detected.Invert != current.Invert {
		res.Issues = append(res.Issues,
			fmt.Sprintf("Inversion mismatch: using %t, detected %t", current.Invert, *detected.Invert))
		if *detected.Invert {
			res.Suggestions = append(res.Suggestions, "Enable signal inversion")
		} else {
			res.Suggestions = append(res.Suggestions, "Disable signal inversion")
		}
	}

	res.IsValid = len(res.Issues) == 0
	return res
}

// DetectedFromConfig converts a fully known configuration, such as a
// recommended preset's, into DetectedParams.
func DetectedFromConfig(c CommConfig) DetectedParams {
	invert := c.Invert
	return DetectedParams{
		Baud:   c.Baud,
		Parity: c.Parity,
		Invert: &invert,
	}
}
