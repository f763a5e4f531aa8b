package shared

// Asynq queues
const (
	QueueLending = "lending"
	QueueReports = "reports"
)

// Asynq task types. Lending events are enqueued as "lending:" + event type.
const (
	TaskPrefixLendingEvent = "lending:"

	TypeLoanIssued   = "lending:loan.issued"
	TypeLoanReturned = "lending:loan.returned"
	TypeFineAssessed = "lending:fine.assessed"
	TypeFinePaid     = "lending:fine.paid"

	TypeOverdueScan = "lending:overdue_scan"
	TypeFinesReport = "lending:fines_report"
)
