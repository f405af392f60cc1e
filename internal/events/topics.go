package events

// TopicOrderCompleted is emitted once a paid booking has been stored remotely.
const TopicOrderCompleted = "order.completed"

// DefaultTopics returns the topics published to the message broker.
func DefaultTopics() []string {
	return []string{TopicOrderCompleted}
}
