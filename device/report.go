package device

// ReportBuilder is an interface for device input states that can build class
// input reports.
type ReportBuilder interface {
	// BuildReport encodes the input state into the report sent to the host.
	BuildReport() []byte
}
