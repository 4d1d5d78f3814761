package core

// ResourceConfig is the set of named, non-negative capacities a node
// advertises (e.g. "cpus": 4). A resource manager that does not recognise a
// key simply never matches a requirement naming it (§6).
type ResourceConfig map[string]int

// ResourceReq is one entry of a call's declared resource requirements: at
// least Amount units of the named resource.
type ResourceReq struct {
	Name   string
	Amount int
}

// Satisfies reports whether cfg advertises at least every requirement in
// reqs — the scheduler's admission test (§4.3): a pure capability filter,
// never a weighted balancer.
func Satisfies(cfg ResourceConfig, reqs []ResourceReq) bool {
	for _, r := range reqs {
		have, ok := cfg[r.Name]
		if !ok || have < r.Amount {
			return false
		}
	}
	return true
}
