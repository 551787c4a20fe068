package protocol

// Status is the composite measurement tuple carried by a status response.
// Voltages and currents are all in the milli range.
type Status struct {
	// VIn is the input voltage in millivolts
	VIn uint16

	// VOutSetting is the configured output voltage in millivolts
	VOutSetting uint16

	// VOut is the measured output voltage in millivolts
	VOut uint16

	// IOut is the measured output current in milliamperes
	IOut uint16

	// ILimit is the configured current limit in milliamperes
	ILimit uint16

	// PowerEnabled reports whether the output is on
	PowerEnabled bool
}

// UpgradeAck is the bootloader's answer to upgrade_start. ChunkSize is the
// size the host must use for all subsequent upgrade data frames; it may be
// smaller than the size the host requested.
type UpgradeAck struct {
	Status    UpgradeStatus
	ChunkSize uint16
	Reason    UpgradeReason
}
