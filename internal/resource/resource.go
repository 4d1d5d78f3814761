// Package resource implements the resource manager of §4.4: the thing
// that mediates local execution of blocking or resource-gated user work
// under numeric quotas. Admission (does a node advertise enough of a
// named resource) is the scheduler's concern, in the root package; this
// package only gates execution once a call has already been placed here.
package resource

import "context"

// Manager is implemented by every resource-manager variant a node can
// run. Initialize starts whatever background workers the variant needs;
// it is called once, from Node.Start (§4.3 step 4).
type Manager interface {
	Initialize(ctx context.Context) error
}

// NoneManager trivially admits every call: a node with no advertised
// resource types beyond the scheduler's capability filter has nothing
// further to gate at execution time.
type NoneManager struct{}

func (NoneManager) Initialize(context.Context) error { return nil }

var (
	_ Manager = NoneManager{}
	_ Manager = (*CPUManager)(nil)
)
