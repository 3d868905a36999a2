package enums

// AuditAction names the reservation change recorded in reservation_audit_logs.
type AuditAction string

const (
	AuditActionHoldExpired       AuditAction = "hold_expired"
	AuditActionPaymentReconciled AuditAction = "payment_reconciled"
	AuditActionPaymentIgnored    AuditAction = "payment_ignored"
	AuditActionVoucherIssued     AuditAction = "voucher_issued"
)

// AuditActor identifies the subsystem that made a change.
type AuditActor string

const (
	AuditActorSweeper    AuditActor = "system:hold_sweeper"
	AuditActorReconciler AuditActor = "system:payment_reconciler"
	AuditActorVouchers   AuditActor = "system:voucher_issuer"
)
