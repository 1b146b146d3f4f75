package detection

import (
	"math"
	"regexp"
	"slices"
	"strconv"
)

// Preset ids referenced by the reference tables.
const (
	PresetAidonRJ45HAN = "aidon-rj45-han"
	PresetAidonRJ12    = "aidon-rj12"
	PresetKaifaRJ45    = "kaifa-rj45"
	PresetKamstrupHAN  = "kamstrup-han"
	PresetLNGRJ45      = "lng-rj45"
	PresetMBusSerial   = "mbus-serial"
)

// meterTypes maps the explicit meter type code found in live payloads
// to manufacturer, model and known-good presets.
var meterTypes = map[int]MeterTypeInfo{
	// Aidon
	1: {Manufacturer: "Aidon", Model: "6442", Presets: []string{PresetAidonRJ45HAN}},
	2: {Manufacturer: "Aidon", Model: "6492", Presets: []string{PresetAidonRJ45HAN}},
	7: {Manufacturer: "Aidon", Model: "6490", Presets: []string{PresetAidonRJ12}},

	// Kaifa
	3: {Manufacturer: "Kaifa", Model: "MA105", Presets: []string{PresetKaifaRJ45}},
	4: {Manufacturer: "Kaifa", Model: "MA304", Presets: []string{PresetKaifaRJ45}},
	9: {Manufacturer: "Kaifa", Model: "MA309", Presets: []string{PresetKaifaRJ45}},

	// Kamstrup
	5: {Manufacturer: "Kamstrup", Model: "OMNIA", Presets: []string{PresetKamstrupHAN}},
	8: {Manufacturer: "Kamstrup", Model: "Multical", Presets: []string{PresetKamstrupHAN}},

	// Landis+Gyr
	6: {Manufacturer: "Landis+Gyr", Model: "E350", Presets: []string{PresetLNGRJ45}},

	// Generic
	10: {Manufacturer: "Generic", Model: "HAN-port", Presets: []string{PresetAidonRJ45HAN, PresetKaifaRJ45}},
	11: {Manufacturer: "Generic", Model: "M-Bus", Presets: []string{PresetMBusSerial}},
}

// identifierPattern is the set of meter id patterns of one manufacturer.
// Key is lower case and doubles as the catalog manufacturer filter.
type identifierPattern struct {
	Key      string
	Patterns []*regexp.Regexp
}

// identifierPatterns is evaluated in order.
var identifierPatterns = []identifierPattern{
	{
		Key: "aidon",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`^7359\d+$`), // 6xxx series
			regexp.MustCompile(`^6442\d+$`),
			regexp.MustCompile(`^6490\d+$`),
			regexp.MustCompile(`^6492\d+$`),
		},
	},
	{
		Key: "kaifa",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`^MA105\w*$`),
			regexp.MustCompile(`^MA304\w*$`),
			regexp.MustCompile(`^MA309\w*$`),
		},
	},
	{
		Key: "kamstrup",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`^OMNIA\w*$`),
			regexp.MustCompile(`^6841\d+$`),
			regexp.MustCompile(`^MULTICAL\w*$`),
		},
	},
}

// commSignature is a serial configuration characteristic of a meter family.
type commSignature struct {
	Name    string
	Config  CommConfig
	Presets []string
}

// commSignatures is evaluated in order; the first exact match wins.
var commSignatures = []commSignature{
	{
		Name:    "high_baud_inverted",
		Config:  CommConfig{Baud: 115200, Parity: "8N1", Invert: true},
		Presets: []string{PresetAidonRJ12},
	},
	{
		Name:    "standard_han_2400",
		Config:  CommConfig{Baud: 2400, Parity: "8E1", Invert: false},
		Presets: []string{PresetAidonRJ45HAN, PresetKaifaRJ45},
	},
	{
		Name:    "kamstrup_signature",
		Config:  CommConfig{Baud: 9600, Parity: "8N2", Invert: false},
		Presets: []string{PresetKamstrupHAN},
	},
}

// modelKeywordGroup maps model-name keywords to a single preset.
type modelKeywordGroup struct {
	Keywords []string
	Preset   string
}

// modelKeywordGroups is evaluated in order; only the first matching group applies.
var modelKeywordGroups = []modelKeywordGroup{
	{Keywords: []string{"aidon"}, Preset: PresetAidonRJ45HAN},
	{Keywords: []string{"kaifa", "ma105", "ma304"}, Preset: PresetKaifaRJ45},
	{Keywords: []string{"kamstrup", "omnia"}, Preset: PresetKamstrupHAN},
}

// fallbackPresets are suggested for a 2400 8E1 port when evidence is weak.
var fallbackPresets = []string{PresetKaifaRJ45, PresetAidonRJ45HAN}

// MeterInfoFromType looks up a meter type code. Unknown codes yield an
// "Unknown" record with no presets rather than an error.
func MeterInfoFromType(code int) MeterTypeInfo {
	info, ok := meterTypes[code]
	if !ok {
		return unknownMeterType(strconv.Itoa(code))
	}
	info.Presets = slices.Clone(info.Presets)
	return info
}

// meterInfoFromNumber looks up a type code as it appears in a payload.
// Only whole numbers can match the table.
func meterInfoFromNumber(v float64) MeterTypeInfo {
	if v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32 {
		return MeterInfoFromType(int(v))
	}
	return unknownMeterType(formatNumber(v))
}

func unknownMeterType(code string) MeterTypeInfo {
	return MeterTypeInfo{
		Manufacturer: "Unknown",
		Model:        "Type " + code,
		Presets:      []string{},
	}
}

// KnownMeterTypes returns the sorted list of meter type codes in the reference table.
func KnownMeterTypes() []int {
	codes := make([]int, 0, len(meterTypes))
	for code := range meterTypes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
