package preset

// Protocols carried over the HAN port.
const (
	ProtocolDLMS = "DLMS/COSEM (HDLC)"
	ProtocolMBus = "M-Bus"
)

// DefaultPresets returns the built-in catalog, in catalog order.
// Every preset id referenced by the detection reference tables is present.
func DefaultPresets() []Preset {
	return []Preset{
		{
			ID:           "aidon-rj45-han",
			Name:         "Aidon RJ45 HAN",
			Manufacturer: "Aidon",
			Baud:         2400,
			Parity:       "8E1",
			Invert:       false,
			Connector:    "RJ45",
			Protocol:     ProtocolDLMS,
			Description:  "Aidon 6442/6492 HAN port",
			SortOrder:    10,
		},
		{
			ID:           "aidon-rj12",
			Name:         "Aidon RJ12",
			Manufacturer: "Aidon",
			Baud:         115200,
			Parity:       "8N1",
			Invert:       true,
			Connector:    "RJ12",
			Protocol:     ProtocolDLMS,
			Description:  "Aidon 6490 RJ12 port, inverted signal",
			SortOrder:    20,
		},
		{
			ID:           "kaifa-rj45",
			Name:         "Kaifa RJ45 HAN",
			Manufacturer: "Kaifa",
			Baud:         2400,
			Parity:       "8E1",
			Invert:       false,
			Connector:    "RJ45",
			Protocol:     ProtocolDLMS,
			Description:  "Kaifa MA105/MA304/MA309 HAN port",
			SortOrder:    30,
		},
		{
			ID:           "kamstrup-han",
			Name:         "Kamstrup HAN",
			Manufacturer: "Kamstrup",
			Baud:         9600,
			Parity:       "8N2",
			Invert:       false,
			Connector:    "RJ45",
			Protocol:     ProtocolDLMS,
			Description:  "Kamstrup OMNIA and Multical HAN module",
			SortOrder:    40,
		},
		{
			ID:           "lng-rj45",
			Name:         "Landis+Gyr RJ45",
			Manufacturer: "Landis+Gyr",
			Baud:         2400,
			Parity:       "8E1",
			Invert:       false,
			Connector:    "RJ45",
			Protocol:     ProtocolDLMS,
			Description:  "Landis+Gyr E350 customer interface",
			SortOrder:    50,
		},
		{
			ID:           "mbus-serial",
			Name:         "Generic M-Bus",
			Manufacturer: "Generic",
			Baud:         2400,
			Parity:       "8E1",
			Invert:       false,
			Connector:    "M-Bus terminals",
			Protocol:     ProtocolMBus,
			Description:  "Wired M-Bus through a level converter",
			SortOrder:    60,
		},
	}
}
