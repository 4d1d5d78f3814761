package core

// RefData is the wire form of a DFutRef: everything a consumer submits to
// the owning node to identify a slot and update its instance map (the
// "ref-delta", §4.1). Field names are short because this struct crosses
// the wire on every Retrieve.
type RefData struct {
	Owner    NodeId     `json:"owner"`
	Id       DFutId     `json:"id"`
	Instance InstanceId `json:"instance"`
	Parent   InstanceId `json:"parent"`
	Children int        `json:"children"`
}
