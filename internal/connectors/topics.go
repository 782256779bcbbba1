package connectors

const (
	TopicSnapshot   = "device.snapshot"
	TopicConnStatus = "conn.status"
)
