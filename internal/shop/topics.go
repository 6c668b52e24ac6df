package shop

const (
	TopicOrderCreated        = "order.created"
	TopicOrderPaid           = "order.paid"
	TopicOrderCancelled      = "order.cancelled"
	TopicPaymentReminder     = "order.payment.reminder"
	TopicReservationPromoted = "reservation.promoted"
)

// Partition key = order_id (or product_id for reservation events) so all
// events for one entity keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
