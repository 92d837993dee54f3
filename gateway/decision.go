package gateway

// Decision is the tagged outcome of one authorization pass. A superuser
// override is distinguishable from an ordinary grant so audit logs can tell
// them apart.
type Decision int

const (
	Deny Decision = iota
	Allow
	AllowViaSuperuser
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowViaSuperuser:
		return "allow_via_superuser"
	default:
		return "deny"
	}
}
