package audit

import "time"

// Action describes what was done against the backend.
type Action string

const (
	ActionTownLoad       Action = "town_load"
	ActionTownSave       Action = "town_save"
	ActionTownCopy       Action = "town_copy"
	ActionTownImport     Action = "town_import"
	ActionTownExport     Action = "town_export"
	ActionTownDelete     Action = "town_delete"
	ActionTownSubmit     Action = "town_submit"
	ActionPendingApprove Action = "pending_approve"
	ActionPendingReject  Action = "pending_reject"
	ActionCurrencySave   Action = "currency_save"
	ActionUserUpdate     Action = "user_update"
	ActionUserDelete     Action = "user_delete"
	ActionViewAs         Action = "view_as"
	ActionEventSet       Action = "event_set"
	ActionEventAdjust    Action = "event_adjust"
	ActionEventReset     Action = "event_reset"
	ActionSettingsUpdate Action = "settings_update"
	ActionServerControl  Action = "server_control"
	ActionBackup         Action = "backup"
)

// Outcome records how an action ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Surface   string    `json:"surface"`
	Action    Action    `json:"action"`
	Target    string    `json:"target"`
	Summary   string    `json:"summary"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}
