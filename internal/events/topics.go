package events

import "go.mongodb.org/mongo-driver/bson/primitive"

// Topic is a typed room key. Constructors below are the only way topics are
// built, so order, branch and customer rooms can never collide.
type Topic string

// OrderTopic scopes events to all watchers of one order.
func OrderTopic(id primitive.ObjectID) Topic {
	return Topic("order:" + id.Hex())
}

// BranchTopic scopes events to delivery partners idle at one branch.
func BranchTopic(id primitive.ObjectID) Topic {
	return Topic("branch:" + id.Hex())
}

// CustomerTopic is one customer's own channel.
func CustomerTopic(id primitive.ObjectID) Topic {
	return Topic("customer:" + id.Hex())
}

// Event names exposed to collaborating subsystems.
const (
	EventNewOrderAvailable             = "newOrderAvailable"
	EventOrderAcceptedByOther          = "orderAcceptedByOther"
	EventOrderStatusUpdated            = "orderStatusUpdated"
	EventOrderLocationUpdated          = "orderLocationUpdated"
	EventOrderPickedUp                 = "orderPickedUp"
	EventAwaitingCustomerConfirmation  = "awaitingCustomerConfirmation"
	EventOrderInProgress               = "orderInProgress"
	EventDeliveryConfirmed             = "deliveryConfirmed"
	EventOrderCompleted                = "orderCompleted"
	EventOrderCancelled                = "orderCancelled"
	EventDeliveryPartnerLocationUpdate = "deliveryPartnerLocationUpdate"
)
