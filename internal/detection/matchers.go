package detection

import "strings"

// MatchIdentifier returns the manufacturer key whose pattern set matches
// the meter id, scanning manufacturers in table order.
func MatchIdentifier(meterID string) (string, bool) {
	for _, ip := range identifierPatterns {
		if ip.matches(meterID) {
			return ip.Key, true
		}
	}
	return "", false
}

func (ip identifierPattern) matches(meterID string) bool {
	for _, re := range ip.Patterns {
		if re.MatchString(meterID) {
			return true
		}
	}
	return false
}

// MatchCommSignature returns the name and presets of the first signature
// equal to cfg in baud, parity and inversion.
func MatchCommSignature(cfg CommConfig) (name string, presets []string, ok bool) {
	for _, sig := range commSignatures {
		if sig.Config == cfg {
			return sig.Name, append([]string(nil), sig.Presets...), true
		}
	}
	return "", nil, false
}

// MatchModelString returns the preset implied by keywords in a free-form
// model string. Only the first matching keyword group counts.
func MatchModelString(model string) (string, bool) {
	lower := strings.ToLower(model)
	for _, group := range modelKeywordGroups {
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				return group.Preset, true
			}
		}
	}
	return "", false
}
