package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/CarliMargareta/storyagent/agent"
	"github.com/CarliMargareta/storyagent/api"
	"github.com/CarliMargareta/storyagent/cache"
	"github.com/CarliMargareta/storyagent/events"
	"github.com/CarliMargareta/storyagent/models"
	"github.com/CarliMargareta/storyagent/repo"
	"github.com/CarliMargareta/storyagent/storyapi"
	"github.com/CarliMargareta/storyagent/version"
	"github.com/fatih/color"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("CMD")

// Start is the main entry point for the story agent. The options to
// this command are the same as the agent config options.
type Start struct {
	repo.Config
}

// Execute starts the story agent.
func (x *Start) Execute(args []string) error {
	cfg, err := repo.LoadConfig()
	if err != nil {
		return err
	}

	r, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	apiClient := storyapi.NewClient(cfg.APIURL, cfg.FetchTimeout)

	cdnHosts := make(map[string]bool)
	for _, host := range cfg.CDNHosts {
		cdnHosts[host] = true
	}
	assets := cache.NewAssetCache(&cache.Config{
		DB:            r.DB(),
		Version:       cfg.CacheVersion,
		Origin:        cfg.SiteOrigin,
		CDNHosts:      cdnHosts,
		CDNMaxEntries: cfg.CDNMaxEntries,
		CDNMaxAge:     cfg.CDNMaxAge,
		FetchTimeout:  cfg.FetchTimeout,
	})
	if _, err := assets.RotateVersions(); err != nil {
		log.Errorf("Error rotating asset cache: %s", err)
	}
	go assets.Precache(cfg.PrecacheURLs)

	var gateway *api.Gateway
	a := agent.NewAgent(&agent.Config{
		Repo:             r,
		Bus:              bus,
		APIClient:        apiClient,
		DisplayFunc:      displayNotification,
		PushEndpoint:     fmt.Sprintf("http://%s/v1/agent/push", cfg.GatewayAddr),
		PollInterval:     cfg.PollInterval,
		ReminderInterval: cfg.ReminderInterval,
		DummyInterval:    cfg.DummyInterval,
		SweepInterval:    cfg.SweepInterval,
		NotifyFunc: func(i interface{}) error {
			if gateway == nil {
				return nil
			}
			return gateway.NotifyConnected(i)
		},
	})

	listener, err := net.Listen("tcp", cfg.GatewayAddr)
	if err != nil {
		return err
	}
	allowedIPs := make(map[string]bool)
	for _, ip := range cfg.AllowedIPs {
		allowedIPs[ip] = true
	}
	gateway, err = api.NewGateway(a, assets, &api.GatewayConfig{
		Listener:   listener,
		NoCors:     cfg.NoCors,
		AllowedIPs: allowedIPs,
		Username:   cfg.GatewayUsername,
		Password:   cfg.GatewayPassword,
	})
	if err != nil {
		return err
	}

	printSplashScreen()
	a.Start()
	go func() {
		if err := gateway.Serve(); err != nil {
			log.Errorf("Gateway error: %s", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	log.Info("StoryAgent shutting down...")
	a.Stop()
	if err := gateway.Close(); err != nil {
		log.Errorf("Error closing gateway: %s", err)
	}
	if err := r.Close(); err != nil {
		log.Errorf("Error closing repo: %s", err)
	}
	os.Exit(1)

	return nil
}

// displayNotification is the agent's platform display primitive: it
// renders the notification on the console the agent runs in.
func displayNotification(title string, options models.NotificationOptions) error {
	bold := color.New(color.Bold)
	if _, err := bold.Printf("\n[notification] %s\n", title); err != nil {
		return err
	}
	if options.Body != "" {
		fmt.Printf("   %s\n", options.Body)
	}
	return nil
}

func printSplashScreen() {
	blue := color.New(color.FgBlue)
	white := color.New(color.FgWhite)

	for i, l := range []string{
		` _______ __                     _______                    __   `,
		`|     __|  |_.-----.----.--.--.|   _   |.-----.-----.-----|  |_ `,
		`|__     |   _|  _  |   _|  |  ||       ||  _  |  -__|     |   _|`,
		`|_______|____|_____|__| |___  ||___|___||___  |_____|__|__|____|`,
		`                        |_____|         |_____|                 `,
	} {
		if i%2 == 0 {
			if _, err := white.Println(l); err != nil {
				log.Debug(err)
				return
			}
			continue
		}
		if _, err := blue.Println(l); err != nil {
			log.Debug(err)
			return
		}
	}

	blue.DisableColor()
	white.DisableColor()
	fmt.Println("")
	fmt.Printf("\nstoryagent v%s\n", version.String())
}
