package models

const (
	KindIndividual = "individual"
	KindMultiRoot  = "multi-root"
	KindBranch     = "branch"
)

type Business struct {
	BusinessID string `json:"business_id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	BranchCode string `json:"branch_code"`
	Timezone   string `json:"timezone,omitempty"`
}

type QueuePoint struct {
	QueuePointID string `json:"queue_point_id"`
	BusinessID   string `json:"business_id"`
	Name         string `json:"name"`
	LastSequence uint32 `json:"last_sequence"`
}
