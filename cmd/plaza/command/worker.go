package command

import (
	"fmt"

	"github.com/pixil98/go-plaza/internal/auth"
	"github.com/pixil98/go-plaza/internal/driver"
	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/listener"
	"github.com/pixil98/go-plaza/internal/logging"
	"github.com/pixil98/go-plaza/internal/messaging"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/session"
	"github.com/pixil98/go-service"
	"github.com/sirupsen/logrus"
)

// BuildWorkers assembles the server from config. The log section is applied
// to logger.
func BuildWorkers(config interface{}, logger *logrus.Logger) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	logging.Configure(logger, cfg.Log)

	tick, err := cfg.tickInterval()
	if err != nil {
		return nil, err
	}

	gameCfg, err := cfg.World.buildGameConfig(tick)
	if err != nil {
		return nil, fmt.Errorf("building world config: %w", err)
	}
	gameCfg.VoiceEnabled = cfg.Voice.URL != ""

	zoneIndex, err := cfg.buildZoneIndex(gameCfg.World)
	if err != nil {
		return nil, fmt.Errorf("building zone index: %w", err)
	}

	games, err := cfg.buildMiniGames()
	if err != nil {
		return nil, fmt.Errorf("building minigames: %w", err)
	}

	// Setup the message bus
	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	publisher := messaging.NewNatsPublisher(natsServer)

	// Setup the ledger
	store, err := cfg.Storage.buildProfileStore()
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	bridge := quests.NewBridge(store, publisher)
	queue := cfg.Ledger.buildQueue()

	world, err := game.NewWorld(gameCfg, zoneIndex, games, publisher,
		game.WithDeferrer(queue),
		game.WithLedger(bridge),
		game.WithRecordStore(store),
	)
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}

	// Setup sessions
	verifier, err := cfg.Auth.buildVerifier()
	if err != nil {
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}
	sessionOpts := []session.ManagerOpt{
		session.WithProfiles(bridge),
		session.WithRequireAuth(cfg.Auth.RequireAuth),
		session.WithGuestFallback(cfg.Auth.guestFallback()),
	}
	voice := listener.VoiceConfig{URL: cfg.Voice.URL}
	if verifier != nil {
		sessionOpts = append(sessionOpts, session.WithVerifier(verifier))
		voice.Verifier = verifier
		voice.Issuer = auth.NewVoiceIssuer(verifier)
	}
	sessions := session.NewManager(world, natsServer, sessionOpts...)
	cm := listener.NewConnectionManager(sessions)

	// Create Listeners
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		listeners[fmt.Sprintf("listener-%d", i)] = l.BuildListener(cm,
			listener.WithStats(world),
			listener.WithVoice(voice),
			listener.WithReady(natsServer.Ready()),
		)
	}

	// Setup the tick driver
	driver := driver.NewTickDriver([]driver.Manager{
		world,
	}, driver.WithInterval(tick))

	// Create a worker list
	return service.WorkerList{
		"driver":    driver,
		"nats":      natsServer,
		"ledger":    queue,
		"listeners": &listeners,
	}, nil
}
