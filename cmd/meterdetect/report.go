package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/monitor"
	"github.com/nerrad567/meterdetect/internal/preset"
)

var errNoFrame = errors.New("no frame given")

// detectReport is the one-shot result for a single frame.
type detectReport struct {
	Identity    detection.MeterIdentity     `json:"identity"`
	Result      detection.DetectionResult   `json:"result"`
	Diagnostics detection.Diagnostics       `json:"diagnostics"`
	Recommended *preset.Preset              `json:"recommended,omitempty"`
	Validation  *detection.ValidationResult `json:"validation,omitempty"`
}

// runDetect evaluates one live frame, read from a file or stdin, against the
// built-in catalog.
//
//	meterdetect detect -input frame.json
//	mosquitto_sub -t meterdetect/meter/han-1/live -C 1 | meterdetect detect -json
func runDetect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(out)
	input := fs.String("input", "-", "live frame JSON file, or - for stdin")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := readInput(*input)
	if err != nil {
		return err
	}
	var frame monitor.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("parsing frame: %w", err)
	}

	report := evaluateFrame(detection.NewDetector(preset.NewDefaultCatalog()), frame)
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderReport(out, report)
}

func readInput(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errNoFrame
	}
	return data, nil
}

func evaluateFrame(detector *detection.Detector, frame monitor.Frame) detectReport {
	id := detection.MeterIdentity{MeterID: frame.MeterID, MeterModel: frame.MeterModel}
	payload := detection.ParsePayload(frame.Payload)

	report := detectReport{
		Identity:    id,
		Result:      detector.Detect(id, frame.Comm, payload),
		Diagnostics: detection.Diagnose(payload, frame.Comm),
	}
	best, ok := detector.BestPreset(report.Result.SuggestedPresets)
	if !ok {
		return report
	}
	report.Recommended = &best

	if frame.Comm != nil {
		v := detection.ValidateConfiguration(*frame.Comm, detection.DetectedFromConfig(detection.CommConfig{
			Baud:   best.Baud,
			Parity: best.Parity,
			Invert: best.Invert,
		}))
		report.Validation = &v
	}
	return report
}

func renderReport(out io.Writer, r detectReport) error {
	fmt.Fprintln(out, pterm.DefaultHeader.WithFullWidth().Sprint("Meter detection"))

	fmt.Fprint(out, pterm.DefaultSection.Sprint("Result"))
	table, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Field", "Value"},
		{"Meter ID", orDash(r.Identity.MeterID)},
		{"Meter model", orDash(r.Identity.MeterModel)},
		{"Manufacturer", orDash(deref(r.Result.DetectedManufacturer))},
		{"Model", orDash(deref(r.Result.DetectedModel))},
		{"Confidence", strconv.Itoa(r.Result.Confidence)},
		{"Suggested presets", orDash(strings.Join(r.Result.SuggestedPresets, ", "))},
	}).Srender()
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	fmt.Fprintln(out, table)
	if err := renderBullets(out, r.Result.Reasoning); err != nil {
		return err
	}

	fmt.Fprint(out, pterm.DefaultSection.Sprint("Diagnostics"))
	table, err = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Check", "Status"},
		{"Connection", string(r.Diagnostics.ConnectionStatus)},
		{"Data quality", string(r.Diagnostics.DataQuality)},
		{"Phases", string(r.Diagnostics.PhaseConfiguration)},
		{"Communication", string(r.Diagnostics.CommunicationHealth)},
	}).Srender()
	if err != nil {
		return fmt.Errorf("rendering diagnostics: %w", err)
	}
	fmt.Fprintln(out, table)
	if err := renderBullets(out, r.Diagnostics.Recommendations); err != nil {
		return err
	}

	fmt.Fprint(out, pterm.DefaultSection.Sprint("Recommendation"))
	if r.Recommended == nil {
		fmt.Fprint(out, pterm.Warning.Sprintln("no preset matches this meter"))
		return nil
	}
	p := r.Recommended
	fmt.Fprint(out, pterm.Info.Sprintln(fmt.Sprintf("%s (%s): %d baud, %s, invert=%t", p.Name, p.ID, p.Baud, p.Parity, p.Invert)))

	if r.Validation == nil {
		return nil
	}
	if r.Validation.IsValid {
		fmt.Fprint(out, pterm.Success.Sprintln("current port configuration matches"))
		return nil
	}
	for i, issue := range r.Validation.Issues {
		line := issue
		if i < len(r.Validation.Suggestions) {
			line += ": " + r.Validation.Suggestions[i]
		}
		fmt.Fprint(out, pterm.Warning.Sprintln(line))
	}
	return nil
}

func renderBullets(out io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	items := make([]pterm.BulletListItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, pterm.BulletListItem{Level: 0, Text: l})
	}
	s, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		return fmt.Errorf("rendering list: %w", err)
	}
	fmt.Fprintln(out, s)
	return nil
}

// runPresets prints the built-in catalog, optionally for one manufacturer.
func runPresets(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("presets", flag.ContinueOnError)
	fs.SetOutput(out)
	manufacturer := fs.String("manufacturer", "", "only presets for this manufacturer key, e.g. aidon")
	asJSON := fs.Bool("json", false, "print the presets as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog := preset.NewDefaultCatalog()
	presets := catalog.List()
	if *manufacturer != "" {
		presets = catalog.FilterByManufacturer(*manufacturer)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(presets)
	}

	if len(presets) == 0 {
		fmt.Fprint(out, pterm.Warning.Sprintln("no presets found"))
		return nil
	}
	data := pterm.TableData{{"ID", "Name", "Baud", "Framing", "Invert", "Connector"}}
	for _, p := range presets {
		data = append(data, []string{p.ID, p.Name, strconv.Itoa(p.Baud), p.Parity, strconv.FormatBool(p.Invert), orDash(p.Connector)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("rendering presets: %w", err)
	}
	fmt.Fprintln(out, table)
	return nil
}

// runPorts lists the serial ports a HAN adapter could be attached to.
func runPorts(out io.Writer) error {
	ports, err := detection.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprint(out, pterm.Warning.Sprintln("no serial ports found"))
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
