package api

import (
	"net"
	"net/http"

	"github.com/CarliMargareta/storyagent/agent"
	"github.com/CarliMargareta/storyagent/cache"
	"github.com/CarliMargareta/storyagent/events"
	"github.com/gorilla/mux"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("api")

type GatewayConfig struct {
	Listener   net.Listener
	NoCors     bool
	AllowedIPs map[string]bool
	Cookie     string
	Username   string
	Password   string
	UseSSL     bool
	SSLCert    string
	SSLKey     string
}

// Gateway is the HTTP surface of the agent. It serves the websocket
// bridge windows connect through, the webhook push providers POST to,
// and a small REST mirror of the bridge operations.
type Gateway struct {
	listener net.Listener
	agent    *agent.Agent
	assets   *cache.AssetCache
	handler  http.Handler
	config   *GatewayConfig
	hub      *hub
	shutdown chan struct{}
}

// NewGateway instantiates a new gateway around the given agent.
func NewGateway(a *agent.Agent, assets *cache.AssetCache, config *GatewayConfig) (*Gateway, error) {
	g := &Gateway{
		agent:    a,
		assets:   assets,
		config:   config,
		listener: config.Listener,
		hub:      newHub(),
		shutdown: make(chan struct{}),
	}

	r := g.newV1Router()

	if !config.NoCors {
		r.Use(g.CORSAllowAllOriginsMiddleware)
	}
	r.Use(g.AuthenticationMiddleware)

	g.handler = r

	go g.hub.run()
	go g.listenEvents()
	return g, nil
}

// Close shutsdown the Gateway listener.
func (g *Gateway) Close() error {
	close(g.shutdown)
	return g.listener.Close()
}

// Serve begins listening on the configured address.
func (g *Gateway) Serve() error {
	log.Infof("Gateway/API server listening on %s\n", g.listener.Addr())
	var err error
	if g.config.UseSSL {
		err = http.ListenAndServeTLS(g.listener.Addr().String(), g.config.SSLCert, g.config.SSLKey, g.handler)
	} else {
		err = http.Serve(g.listener, g.handler)
	}
	return err
}

// NotifyConnected sanitizes the payload and broadcasts it to every
// connected window. It satisfies notifications.NotifyFunc.
func (g *Gateway) NotifyConnected(i interface{}) error {
	out, err := marshalAndSanitizeJSON(i)
	if err != nil {
		return err
	}
	g.hub.Broadcast <- out
	return nil
}

// listenEvents relays bus events every window should hear about,
// regardless of which window (if any) triggered them.
func (g *Gateway) listenEvents() {
	sub, err := g.agent.Bus().Subscribe([]interface{}{
		&events.DummyModeChanged{},
		&events.PushPermission{},
	})
	if err != nil {
		log.Errorf("Error subscribing to events: %s", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case event := <-sub.Out():
			var payload interface{}
			switch e := event.(type) {
			case *events.DummyModeChanged:
				payload = dummyStatusMessage{Type: "DUMMY_NOTIFICATIONS_STATUS", Enabled: e.Enabled}
			case *events.PushPermission:
				payload = pushPermissionMessage{Type: "PUSH_PERMISSION", Status: e.Status}
			default:
				continue
			}
			if err := g.NotifyConnected(payload); err != nil {
				log.Errorf("Error broadcasting event: %s", err)
			}
		case <-g.shutdown:
			return
		}
	}
}

func (g *Gateway) newV1Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/v1/agent/ws", newWebsocketHandler(g)).Methods("GET")
	r.HandleFunc("/v1/agent/push", g.handlePOSTPush).Methods("POST")
	r.HandleFunc("/v1/agent/notifications", g.handleGETNotifications).Methods("GET")
	r.HandleFunc("/v1/agent/notifications", g.handleDELETENotifications).Methods("DELETE")
	r.HandleFunc("/v1/agent/notifications/{notificationID}", g.handleDELETENotification).Methods("DELETE")
	r.HandleFunc("/v1/agent/markasread/{notificationID}", g.handlePOSTMarkAsRead).Methods("POST")
	r.HandleFunc("/v1/agent/markallasread", g.handlePOSTMarkAllAsRead).Methods("POST")
	r.HandleFunc("/v1/agent/token", g.handlePOSTToken).Methods("POST")
	r.HandleFunc("/v1/agent/checkstories", g.handlePOSTCheckStories).Methods("POST")
	r.HandleFunc("/v1/agent/dummymode", g.handlePOSTDummyMode).Methods("POST")
	r.HandleFunc("/v1/agent/dummymode", g.handleGETDummyMode).Methods("GET")
	r.HandleFunc("/v1/agent/subscription", g.handlePOSTSubscription).Methods("POST")
	r.HandleFunc("/v1/agent/subscription", g.handleDELETESubscription).Methods("DELETE")
	r.HandleFunc("/v1/agent/status", g.handleGETStatus).Methods("GET")
	r.HandleFunc("/v1/agent/fetch", g.handleGETFetch).Methods("GET")
	return r
}
