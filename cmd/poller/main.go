package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homehub/internal/alerts"
	"homehub/internal/config"
	"homehub/internal/database"
	"homehub/internal/energy"
	"homehub/internal/iot"
	"homehub/internal/models"
	"homehub/internal/notifier"
	"homehub/internal/pricing"
	"homehub/internal/reachability"
	"homehub/internal/weather"
)

// Poller drives the background work: device reachability probes, energy
// sampling, automation rules, the daily data collection run and data
// retention cleanup.
type Poller struct {
	cfg          *config.Config
	db           *database.Database
	prober       *reachability.Prober
	engine       *iot.Engine
	recorder     *energy.Recorder
	alertManager *alerts.AlertManager
	priceMonitor *pricing.Monitor
	newsMonitor  *pricing.NewsMonitor
	weather      *weather.Client

	stopChan chan struct{}
	stopped  chan struct{}
}

func NewPoller(cfg *config.Config, db *database.Database) *Poller {
	notif := notifier.NewNotifier(cfg)
	alertManager := alerts.NewAlertManager(cfg, db, notif)

	controller := iot.NewController(db, nil)
	priceMonitor := pricing.NewMonitor(db, cfg)

	p := &Poller{
		cfg:          cfg,
		db:           db,
		prober:       reachability.NewProber(db, cfg.Hub.ProbeInterval, cfg.Hub.ProbeTimeout, cfg.Hub.ProbeCount),
		engine:       iot.NewEngine(db, controller),
		recorder:     energy.NewRecorder(db, cfg),
		alertManager: alertManager,
		priceMonitor: priceMonitor,
		newsMonitor:  pricing.NewNewsMonitor(db, priceMonitor),
		weather:      weather.NewClient(cfg),
		stopChan:     make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	p.prober.OnChange = func(device models.Device, online bool) {
		if online {
			return
		}
		if err := alertManager.DeviceOffline(device); err != nil {
			log.Printf("[Poller] Failed to send offline alert for %s: %v", device.DeviceID, err)
		}
	}

	return p
}

func (p *Poller) Start() {
	log.Printf("[Poller] Starting (probe interval %s, energy interval %s)",
		p.cfg.Hub.ProbeInterval, p.cfg.Energy.SampleInterval)

	p.prober.Start()

	go p.run()
}

func (p *Poller) Stop() {
	select {
	case <-p.stopChan:
	default:
		close(p.stopChan)
	}
	p.prober.Stop()
	<-p.stopped
}

func (p *Poller) run() {
	defer close(p.stopped)

	energyTicker := time.NewTicker(p.cfg.Energy.SampleInterval)
	defer energyTicker.Stop()

	automationTicker := time.NewTicker(time.Minute)
	defer automationTicker.Stop()

	dailyTicker := time.NewTicker(24 * time.Hour)
	defer dailyTicker.Stop()

	// First sample and collection right away so a fresh install has data.
	p.sampleEnergy()
	go p.collectDailyData()

	for {
		select {
		case <-p.stopChan:
			log.Println("[Poller] Stopped")
			return
		case now := <-automationTicker.C:
			p.engine.Check(now)
		case <-energyTicker.C:
			p.sampleEnergy()
		case <-dailyTicker.C:
			p.collectDailyData()
			p.cleanup()
		}
	}
}

func (p *Poller) sampleEnergy() {
	if err := p.recorder.Sample(); err != nil {
		log.Printf("[Poller] Energy sampling failed: %v", err)
		return
	}

	report, err := p.recorder.Report(1, p.cfg.Energy.Currency)
	if err != nil {
		log.Printf("[Poller] Energy report failed: %v", err)
		return
	}
	if err := p.alertManager.CheckDailyCost(report.TotalDailyCost, p.cfg.Energy.Currency); err != nil {
		log.Printf("[Poller] Daily cost alert failed: %v", err)
	}
}

func (p *Poller) collectDailyData() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	log.Println("[Poller] Starting daily data collection")

	for _, component := range p.cfg.Pricing.WatchList {
		select {
		case <-p.stopChan:
			return
		default:
		}
		if _, err := p.priceMonitor.CheckComponent(ctx, component); err != nil {
			log.Printf("[Poller] Price check for %q failed: %v", component, err)
		}
	}

	if count, err := p.newsMonitor.Collect(ctx); err != nil {
		log.Printf("[Poller] News collection failed: %v", err)
	} else {
		log.Printf("[Poller] Collected %d news items", count)
	}

	if p.weather.Enabled() {
		if current, err := p.weather.CurrentWeather(ctx); err != nil {
			log.Printf("[Poller] Weather check failed: %v", err)
		} else {
			log.Printf("[Poller] Weather: %.1f°C, %s", current.Temperature, current.Description)
		}
	}

	log.Println("[Poller] Daily data collection finished")
}

func (p *Poller) cleanup() {
	if err := p.db.CleanupOldData(p.cfg.Hub.RetentionDays); err != nil {
		log.Printf("[Poller] Data cleanup failed: %v", err)
	}
}

func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	poller := NewPoller(cfg, db)
	poller.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Poller] Shutting down...")
	poller.Stop()
}
