package models

// SubscriptionKeys holds the client key material for a push
// subscription, base64url encoded.
type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the payload registered with the remote API's
// notifications/subscribe endpoint. The key material is nested under
// "keys" per the server contract.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}
