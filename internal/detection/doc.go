// Package detection identifies a smart meter and recommends a communication
// preset from HAN port evidence.
//
// Four kinds of evidence are combined, in priority order:
//
//  1. The live telemetry payload (explicit meter type, phases, link status)
//  2. The meter identifier, matched against manufacturer patterns
//  3. The serial configuration in use, matched against known signatures
//  4. The free-form model string, matched against keywords
//
// Each stage adds a fixed weight to an uncapped confidence score and appends
// the reasons to the result. Confidence is a ranking signal, not a
// probability.
//
// Everything in this package is synchronous and free of I/O. Bad input never
// produces an error; it produces weaker evidence or an "unknown" grade.
//
// Usage:
//
//	det := detection.NewDetector(catalog)
//	res := det.Detect(
//	    detection.MeterIdentity{MeterID: "735912345"},
//	    &detection.CommConfig{Baud: 2400, Parity: "8E1"},
//	    detection.ParsePayload(raw),
//	)
//	if best, ok := det.BestPreset(res.SuggestedPresets); ok {
//	    fmt.Println(best.Name)
//	}
package detection
