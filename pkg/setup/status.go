package setup

// Signal names one boolean component of InstallationStatus.
type Signal string

const (
	SignalConnectionConfigured Signal = "database_config"
	SignalSchemaInstalled      Signal = "database_tables"
	SignalAccountProvisioned   Signal = "admin_user"
	SignalTransportConfigured  Signal = "smtp_config"
	SignalAppConfigured        Signal = "app_config"
)

// Signals lists every signal in evaluation order.
var Signals = []Signal{
	SignalConnectionConfigured,
	SignalSchemaInstalled,
	SignalAccountProvisioned,
	SignalTransportConfigured,
	SignalAppConfigured,
}

// InstallationStatus is the derived snapshot of an installation.
// It is never persisted; every query recomputes it from live signals.
type InstallationStatus struct {
	ConnectionConfigured bool `json:"database_config"`
	SchemaInstalled      bool `json:"database_tables"`
	AccountProvisioned   bool `json:"admin_user"`
	TransportConfigured  bool `json:"smtp_config"`
	AppConfigured        bool `json:"app_config"`

	// TransportRecord reports whether an explicit transport side record exists.
	// It is informational and never blocks completion.
	TransportRecord bool `json:"smtp_record"`
}

// Completed is the AND of all five signals.
func (s InstallationStatus) Completed() bool {
	return s.ConnectionConfigured &&
		s.SchemaInstalled &&
		s.AccountProvisioned &&
		s.TransportConfigured &&
		s.AppConfigured
}

// Value returns the value of a single signal.
func (s InstallationStatus) Value(sig Signal) bool {
	switch sig {
	case SignalConnectionConfigured:
		return s.ConnectionConfigured
	case SignalSchemaInstalled:
		return s.SchemaInstalled
	case SignalAccountProvisioned:
		return s.AccountProvisioned
	case SignalTransportConfigured:
		return s.TransportConfigured
	case SignalAppConfigured:
		return s.AppConfigured
	default:
		return false
	}
}

// NextStep returns the first signal that is still false, or "" when complete.
// Front ends use it to resume an interrupted install.
func (s InstallationStatus) NextStep() Signal {
	for _, sig := range Signals {
		if !s.Value(sig) {
			return sig
		}
	}
	return ""
}
