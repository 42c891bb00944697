package domain

// Method selects how a winning agent is picked from a candidate list.
type Method string

const (
	MethodRoundRobin Method = "round_robin"
	MethodWeighted   Method = "weighted"
	MethodLoadBased  Method = "load_based"
	MethodRandom     Method = "random"
)

// Valid reports whether the method is one of the known values.
func (m Method) Valid() bool {
	switch m {
	case MethodRoundRobin, MethodWeighted, MethodLoadBased, MethodRandom:
		return true
	}
	return false
}
