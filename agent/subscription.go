package agent

import (
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/store"
	"github.com/CarliMargareta/storyagent/storyapi"
)

// PermissionStatus is the outcome of a subscription attempt. The user
// declining is an expected result, not an error.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionError   PermissionStatus = "error"
)

// SubscriptionManager registers this agent's push endpoint with the
// remote API and renews it when the subscription changes. The key
// material follows the web push contract: a P-256 public key and a
// 16 byte auth secret, both base64url encoded, nested under "keys".
type SubscriptionManager struct {
	api      *storyapi.Client
	store    *store.RecordStore
	bus      events.Bus
	endpoint string

	mtx  sync.Mutex
	sub  *models.PushSubscription
	priv []byte
}

// NewSubscriptionManager returns a manager for the given push endpoint.
func NewSubscriptionManager(api *storyapi.Client, rs *store.RecordStore, bus events.Bus, endpoint string) *SubscriptionManager {
	return &SubscriptionManager{
		api:      api,
		store:    rs,
		bus:      bus,
		endpoint: endpoint,
	}
}

// Current returns the active subscription, or nil if none has been
// registered.
func (m *SubscriptionManager) Current() *models.PushSubscription {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.sub
}

// Subscribe generates fresh key material and registers the subscription
// with the remote API. A missing auth token skips the registration
// silently. The resulting status is emitted on the bus so the bridge
// can relay it to open windows.
func (m *SubscriptionManager) Subscribe() PermissionStatus {
	status := m.subscribe()
	m.bus.Emit(&events.PushPermission{Status: string(status)})
	return status
}

// Renew re-subscribes with fresh key material. This is the analog of a
// push subscription change: the old registration is replaced rather
// than removed first.
func (m *SubscriptionManager) Renew() PermissionStatus {
	return m.Subscribe()
}

// Unsubscribe removes the active subscription from the remote API.
func (m *SubscriptionManager) Unsubscribe() error {
	m.mtx.Lock()
	sub := m.sub
	m.sub = nil
	m.mtx.Unlock()

	if sub == nil {
		return nil
	}
	token, err := m.store.AuthToken()
	if err != nil || token == "" {
		return err
	}
	return m.api.Unsubscribe(token, sub)
}

func (m *SubscriptionManager) subscribe() PermissionStatus {
	token, err := m.store.AuthToken()
	if err != nil {
		log.Errorf("Error retrieving auth token: %s", err)
		return PermissionError
	}
	if token == "" {
		log.Debug("No auth token available for push subscription update")
		return PermissionDenied
	}

	sub, priv, err := m.newSubscription()
	if err != nil {
		log.Errorf("Error generating subscription keys: %s", err)
		return PermissionError
	}

	if err := m.api.Subscribe(token, sub); err != nil {
		log.Errorf("Error updating push subscription: %s", err)
		return PermissionError
	}

	m.mtx.Lock()
	m.sub = sub
	m.priv = priv
	m.mtx.Unlock()

	log.Info("Push subscription updated successfully")
	return PermissionGranted
}

// newSubscription generates the subscription payload along with the
// private key needed to decrypt pushes delivered to the endpoint.
func (m *SubscriptionManager) newSubscription() (*models.PushSubscription, []byte, error) {
	curve := elliptic.P256()
	priv, x, y, err := elliptic.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, nil, err
	}

	sub := &models.PushSubscription{
		Endpoint: m.endpoint,
		Keys: models.SubscriptionKeys{
			P256DH: base64.RawURLEncoding.EncodeToString(elliptic.Marshal(curve, x, y)),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
	return sub, priv, nil
}
