package sx127x

// Register map (LoRa mode), per the SX1276/77/78/79 datasheet.
const (
	regFifo           = 0x00
	regOpMode         = 0x01
	regFrfMsb         = 0x06
	regFrfMid         = 0x07
	regFrfLsb         = 0x08
	regPaConfig       = 0x09
	regOcp            = 0x0B
	regLna            = 0x0C
	regFifoAddrPtr    = 0x0D
	regFifoTxBaseAddr = 0x0E
	regFifoRxBaseAddr = 0x0F
	regIrqFlagsMask   = 0x11
	regIrqFlags       = 0x12
	regModemConfig1   = 0x1D
	regModemConfig2   = 0x1E
	regPreambleMsb    = 0x20
	regPreambleLsb    = 0x21
	regPayloadLength  = 0x22
	regModemConfig3   = 0x26
	regSyncWord       = 0x39
	regDioMapping1    = 0x40
	regVersion        = 0x42
	regPaDac          = 0x4D

	// Address bit 7 selects a write access.
	writeBit = 0x80

	// RegOpMode bit 7: LoRa (long range) mode.
	opLongRange = 0x80
	opModeMask  = 0x07

	irqTxDone   = 0x08
	irqClearAll = 0xFF
	dio0TxDone  = 0x40
	fifoTxBase  = 0x00
	fifoRxBase  = 0x00

	// Expected RegVersion value.
	chipVersion = 0x12
)

// RegName returns a short name for diagnostics, or "" for unmapped addresses.
func RegName(addr uint8) string {
	switch addr {
	case regFifo:
		return "Fifo"
	case regOpMode:
		return "OpMode"
	case regFrfMsb:
		return "FrfMsb"
	case regFrfMid:
		return "FrfMid"
	case regFrfLsb:
		return "FrfLsb"
	case regPaConfig:
		return "PaConfig"
	case regOcp:
		return "Ocp"
	case regLna:
		return "Lna"
	case regFifoAddrPtr:
		return "FifoAddrPtr"
	case regFifoTxBaseAddr:
		return "FifoTxBaseAddr"
	case regFifoRxBaseAddr:
		return "FifoRxBaseAddr"
	case regIrqFlagsMask:
		return "IrqFlagsMask"
	case regIrqFlags:
		return "IrqFlags"
	case regModemConfig1:
		return "ModemConfig1"
	case regModemConfig2:
		return "ModemConfig2"
	case regPreambleMsb:
		return "PreambleMsb"
	case regPreambleLsb:
		return "PreambleLsb"
	case regPayloadLength:
		return "PayloadLength"
	case regModemConfig3:
		return "ModemConfig3"
	case regSyncWord:
		return "SyncWord"
	case regDioMapping1:
		return "DioMapping1"
	case regVersion:
		return "Version"
	case regPaDac:
		return "PaDac"
	}
	return ""
}

// dumpOrder lists the registers the driver programs, for Dump.
var dumpOrder = []uint8{
	regOpMode, regFrfMsb, regFrfMid, regFrfLsb, regPaConfig, regOcp, regLna,
	regFifoAddrPtr, regFifoTxBaseAddr, regFifoRxBaseAddr, regIrqFlagsMask,
	regIrqFlags, regModemConfig1, regModemConfig2, regPreambleMsb,
	regPreambleLsb, regPayloadLength, regModemConfig3, regSyncWord,
	regDioMapping1, regVersion, regPaDac,
}
