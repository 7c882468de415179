// Package provisioning implements the asynchronous job engine that drives
// tenant store lifecycles: admission of create/delete requests, durable
// leasing of work against Postgres, and propagation of job outcomes into
// the owning store's state machine.
package provisioning

import (
	"time"
)

// StoreEngine identifies which storefront stack a Store runs.
type StoreEngine string

const (
	EngineWooCommerce StoreEngine = "woocommerce"
	EngineMedusa      StoreEngine = "medusa"
)

// knownEngines mirrors the store_engine enum in the schema; admission
// rejects anything else before it can reach the database.
var knownEngines = map[StoreEngine]bool{
	EngineWooCommerce: true,
	EngineMedusa:      true,
}

// IsKnown reports whether e is a recognized storefront engine.
func (e StoreEngine) IsKnown() bool { return knownEngines[e] }

// Status is a Store's position in the lifecycle state machine.
type Status string

const (
	StatusQueued       Status = "QUEUED"
	StatusProvisioning Status = "PROVISIONING"
	StatusReady        Status = "READY"
	StatusFailed       Status = "FAILED"
	StatusDeleting     Status = "DELETING"
	StatusDeleted      Status = "DELETED"
)

// activeStatuses counts toward max_active_stores at admission time.
var activeStatuses = map[Status]bool{
	StatusQueued:       true,
	StatusProvisioning: true,
	StatusReady:        true,
	StatusDeleting:     true,
}

// IsActive reports whether s counts against the active-store cap.
func (s Status) IsActive() bool { return activeStatuses[s] }

// Action is the kind of work a ProvisioningJob performs.
type Action string

const (
	ActionProvision Action = "PROVISION"
	ActionDelete    Action = "DELETE"
)

// JobStatus is a ProvisioningJob's position in its own small lifecycle.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobSucceeded  JobStatus = "SUCCEEDED"
	JobFailed     JobStatus = "FAILED"
)

// Store is the tenant-visible resource.
type Store struct {
	ID          string
	Engine      StoreEngine
	DisplayName *string
	Namespace   string
	ReleaseName string
	Status      Status
	URL         *string
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProvisioningJob is one unit of async work against a Store.
type ProvisioningJob struct {
	ID           string
	StoreID      string
	Action       Action
	Status       JobStatus
	Attempt      int
	MaxAttempts  int
	LockedBy     *string
	LockedAt     *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// StoreEvent is an append-only audit line for a Store.
type StoreEvent struct {
	ID        int64
	StoreID   string
	EventType string
	Message   string
	CreatedAt time.Time
}

// Event type tags used across admission and the engine.
const (
	EventQueued           = "queued"
	EventDeleteQueued     = "delete_queued"
	EventInstallStarted   = "install_started"
	EventReady            = "ready"
	EventReadinessWarning = "readiness_warning"
	EventDeleteStarted    = "delete_started"
	EventDeleted          = "deleted"
	EventFailed           = "failed"
)

// Well-known error messages recorded on jobs/events.
const (
	MsgProvisionCancelledDeleteRequested = "provision_cancelled_delete_requested"
	MsgProvisionSkippedStoreTeardown     = "provision_skipped_store_teardown_requested"
	MsgStoreNotFound                     = "store_not_found"
	MsgLeaseExpiredFinalAttempt          = "lease_expired_on_final_attempt"
)
