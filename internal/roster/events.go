package roster

// Event topics published by the roster module.
const (
	// TopicReportCreated carries the stored models.Report as payload.
	TopicReportCreated = "roster.report.created"
	// TopicGroupCreated carries the stored models.WorkGroup as payload.
	TopicGroupCreated = "roster.group.created"
)
