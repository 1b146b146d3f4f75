package detection

// Diagnostic recommendations shown to the operator.
const (
	recNoData         = "No meter data received - check HAN port connection"
	recLinkInactive   = "HAN port connection appears inactive"
	recPartialData    = "Some meter values appear invalid - check configuration"
	recNoValidData    = "No valid meter readings - verify meter type and settings"
	recWeakSignal     = "WiFi signal is weak - consider moving closer to router"
	recVeryWeakSignal = "WiFi signal is very weak - connection issues may occur"
)

// Mains voltage window, exclusive, for a plausible L1 reading.
const (
	minPlausibleVoltage = 200
	maxPlausibleVoltage = 260
)

// Diagnose grades the HAN link, data quality, phase layout and radio health
// shown by a payload, with a recommendation for every problem found.
//
// current is accepted for future rules and is not consulted yet.
func Diagnose(p *Payload, current *CommConfig) Diagnostics {
	diag := Diagnostics{
		ConnectionStatus:    ConnectionUnknown,
		DataQuality:         DataQualityUnknown,
		PhaseConfiguration:  PhaseSingle,
		CommunicationHealth: HealthUnknown,
		Recommendations:     []string{},
	}

	if p == nil {
		diag.ConnectionStatus = ConnectionNoData
		diag.Recommendations = append(diag.Recommendations, recNoData)
		return diag
	}

	switch {
	case p.HM != nil && *p.HM > 0:
		diag.ConnectionStatus = ConnectionConnected
	case p.HM != nil && *p.HM == 0:
		diag.ConnectionStatus = ConnectionDisconnected
		diag.Recommendations = append(diag.Recommendations, recLinkInactive)
	}

	validVoltage := p.L1 != nil && p.L1.U != nil &&
		*p.L1.U > minPlausibleVoltage && *p.L1.U < maxPlausibleVoltage
	validCurrent := p.L1 != nil && p.L1.I != nil && *p.L1.I >= 0
	validIndicator := p.I != nil

	switch {
	case validVoltage && validCurrent && validIndicator:
		diag.DataQuality = DataQualityGood
	case validVoltage || validCurrent || validIndicator:
		diag.DataQuality = DataQualityPartial
		diag.Recommendations = append(diag.Recommendations, recPartialData)
	default:
		diag.DataQuality = DataQualityPoor
		diag.Recommendations = append(diag.Recommendations, recNoValidData)
	}

	hasL2 := p.L2.hasVoltageOrCurrent()
	hasL3 := p.L3.hasVoltageOrCurrent()
	switch {
	case hasL2 && hasL3:
		diag.PhaseConfiguration = PhaseThree
	case hasL2:
		diag.PhaseConfiguration = PhaseTwo
	}

	// A zero RSSI means the radio reported nothing.
	if p.R != nil && *p.R != 0 {
		r := *p.R
		switch {
		case r > -70:
			diag.CommunicationHealth = HealthExcellent
		case r > -80:
			diag.CommunicationHealth = HealthGood
		case r > -90:
			diag.CommunicationHealth = HealthFair
			diag.Recommendations = append(diag.Recommendations, recWeakSignal)
		default:
			diag.CommunicationHealth = HealthPoor
			diag.Recommendations = append(diag.Recommendations, recVeryWeakSignal)
		}
	}

	return diag
}
