package usb

// USB descriptor type constants
const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	StringDescType    = 0x03
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	IADescType        = 0x0B
)

// Descriptor lengths in bytes (fixed values from USB spec)
const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
	IADescLen        = 8
)

// EPIn is the direction bit of an endpoint address. Addresses with the bit
// set are IN (device-to-host) endpoints.
const EPIn = 0x80

// ClassVendor is the vendor-specific interface class code.
const ClassVendor = 0xFF

// Stage identifies the phase of a control transfer handed to control
// callbacks: one callback per stage of the same request.
type Stage uint8

const (
	StageIdle Stage = iota
	StageSetup
	StageData
	StageAck
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSetup:
		return "setup"
	case StageData:
		return "data"
	case StageAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Recipient is the bmRequestType recipient field (bits 0-4).
type Recipient uint8

const (
	RecipientDevice    Recipient = 0x00
	RecipientInterface Recipient = 0x01
	RecipientEndpoint  Recipient = 0x02
	RecipientOther     Recipient = 0x03
)

// RequestType is the bmRequestType type field (bits 5-6).
type RequestType uint8

const (
	RequestTypeStandard RequestType = 0x00
	RequestTypeClass    RequestType = 0x01
	RequestTypeVendor   RequestType = 0x02
	RequestTypeReserved RequestType = 0x03
)

// Direction is the bmRequestType direction bit (bit 7).
type Direction uint8

const (
	DirOut Direction = 0
	DirIn  Direction = 1
)

// Result reports the completion status of a submitted transfer, matching
// the low-level controller's completion codes.
type Result uint8

const (
	ResultSuccess Result = iota
	ResultFailed
	ResultStalled
	ResultTimeout
	ResultInvalid
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultStalled:
		return "stalled"
	case ResultTimeout:
		return "timeout"
	case ResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// TransferType is the 2-bit endpoint transfer type from an endpoint
// descriptor's bmAttributes.
type TransferType uint8

const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "control"
	case TransferIsochronous:
		return "isochronous"
	case TransferBulk:
		return "bulk"
	case TransferInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}
