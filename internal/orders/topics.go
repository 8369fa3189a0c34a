package orders

const (
	TopicOrderFinalized        = "checkout.order.finalized"
	TopicInstallmentsScheduled = "checkout.installments.scheduled"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
