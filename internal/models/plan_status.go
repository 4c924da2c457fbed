package models

// Production plan statuses
const (
	PlanStatusPendingVerification = "pending_verification"
	PlanStatusVerified            = "verified"
	PlanStatusProductionReady     = "production_ready"
	PlanStatusAwaitingMaterials   = "awaiting_materials"
	PlanStatusInProduction        = "in_production"
	PlanStatusCompleted           = "completed"
)

// planStage orders statuses so that production stages can only move forward.
var planStage = map[string]int{
	PlanStatusPendingVerification: 0,
	PlanStatusVerified:            0,
	PlanStatusProductionReady:     0,
	PlanStatusAwaitingMaterials:   0,
	PlanStatusInProduction:        1,
	PlanStatusCompleted:           2,
}

// Locked reports whether the plan has left the verification stage
func (p *ProductionPlan) Locked() bool {
	return planStage[p.Status] > 0
}

// TransitionTo moves the plan to status, refusing to leave production stages backwards
func (p *ProductionPlan) TransitionTo(status string) error {
	next, ok := planStage[status]
	if !ok {
		return &ValidationError{Field: "status", Message: "unknown production plan status " + status}
	}
	if next < planStage[p.Status] || (p.Locked() && next == planStage[p.Status] && status != p.Status) {
		return &TransitionError{Entity: "production_plan", From: p.Status, To: status}
	}
	p.Status = status
	return nil
}

// supplierStep orders the forward-only fulfillment chain.
var supplierStep = map[string]int{
	SupplierStatusPending:   0,
	SupplierStatusSent:      1,
	SupplierStatusConfirmed: 2,
	SupplierStatusInTransit: 3,
	SupplierStatusReceived:  4,
}

// CanTransitionTo reports whether the fulfillment status may advance to status
func (o *SupplierOrder) CanTransitionTo(status string) bool {
	if o.Status == SupplierStatusReceived || o.Status == SupplierStatusCancelled {
		return false
	}
	if status == SupplierStatusCancelled {
		return true
	}
	next, ok := supplierStep[status]
	return ok && next > supplierStep[o.Status]
}

// reorderTransitions lists the allowed reorder request moves.
var reorderTransitions = map[string][]string{
	ReorderStatusPending:  {ReorderStatusApproved, ReorderStatusCancelled},
	ReorderStatusApproved: {ReorderStatusOrdered, ReorderStatusCancelled},
}

// CanTransitionTo reports whether the request may move to status
func (r *ReorderRequest) CanTransitionTo(status string) bool {
	for _, s := range reorderTransitions[r.Status] {
		if s == status {
			return true
		}
	}
	return false
}
