package reachability

import (
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"homehub/internal/database"
	"homehub/internal/models"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

type ProberConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	Count      int
	PacketSize int
}

// StatusListener is notified when a probe flips a device between online and
// offline.
type StatusListener func(device models.Device, online bool)

// Prober pings registered device IPs on an interval and keeps their
// online/offline status current.
type Prober struct {
	Config   *ProberConfig
	DB       *database.Database
	OnChange StatusListener
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewProber(db *database.Database, interval, timeout time.Duration, count int) *Prober {
	if count <= 0 {
		count = 3
	}
	return &Prober{
		Config: &ProberConfig{
			Interval:   interval,
			Timeout:    timeout,
			Count:      count,
			PacketSize: 56,
		},
		DB:     db,
		stopCh: make(chan struct{}),
	}
}

func (p *Prober) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		log.Println("[Reachability] Prober already running")
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	log.Printf("[Reachability] Prober started with interval: %v", p.Config.Interval)
}

func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	close(p.stopCh)
	p.wg.Wait()
	p.running = false
	log.Println("[Reachability] Prober stopped")
}

func (p *Prober) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.Config.Interval)
	defer ticker.Stop()

	p.ProbeAll()

	for {
		select {
		case <-ticker.C:
			p.ProbeAll()
		case <-p.stopCh:
			return
		}
	}
}

// ProbeAll pings every enabled device that has an IP address.
func (p *Prober) ProbeAll() {
	devices, err := p.DB.GetEnabledDevices()
	if err != nil {
		log.Printf("[Reachability] Failed to get devices: %v", err)
		return
	}

	for _, device := range devices {
		if device.IPAddress == "" {
			continue
		}
		p.probeDevice(device)
	}
}

func (p *Prober) probeDevice(device models.Device) {
	var totalLatency float64
	var successCount int

	for i := 0; i < p.Config.Count; i++ {
		latency, err := Ping(device.IPAddress, p.Config.Timeout)
		if err != nil {
			continue
		}
		totalLatency += latency
		successCount++
		time.Sleep(100 * time.Millisecond)
	}

	packetLoss := float64(p.Config.Count-successCount) / float64(p.Config.Count) * 100
	online := successCount > 0

	newStatus := models.StatusOffline
	if online {
		newStatus = models.StatusOnline
	}
	if device.Status != newStatus {
		if err := p.DB.SetDeviceStatus(device.DeviceID, newStatus); err != nil {
			log.Printf("[Reachability] Failed to update status for %s: %v", device.DeviceID, err)
		} else {
			log.Printf("[Reachability] Device %s is now %s", device.DeviceID, newStatus)
			if p.OnChange != nil {
				p.OnChange(device, online)
			}
		}
	} else if online {
		// Refresh last_seen even when nothing changed
		if err := p.DB.SetDeviceStatus(device.DeviceID, newStatus); err != nil {
			log.Printf("[Reachability] Failed to refresh %s: %v", device.DeviceID, err)
		}
	}

	var avgLatency float64
	if successCount > 0 {
		avgLatency = totalLatency / float64(successCount)
	}
	p.updateStats(device.DeviceID, avgLatency, packetLoss)
}

func (p *Prober) updateStats(deviceID string, latency, packetLoss float64) {
	stats, err := p.DB.GetReachabilityStats()
	if err != nil {
		log.Printf("[Reachability] Failed to get existing stats: %v", err)
		return
	}

	var existing *models.ReachabilityStat
	for i := range stats {
		if stats[i].DeviceID == deviceID {
			existing = &stats[i]
			break
		}
	}

	if existing == nil {
		stat := &models.ReachabilityStat{
			DeviceID:   deviceID,
			MinLatency: latency,
			MaxLatency: latency,
			AvgLatency: latency,
			PacketLoss: packetLoss,
			Samples:    1,
			UpdatedAt:  time.Now(),
		}
		if err := p.DB.UpsertReachabilityStat(stat); err != nil {
			log.Printf("[Reachability] Failed to save new stats: %v", err)
		}
		return
	}

	newSamples := existing.Samples + 1
	existing.MinLatency = math.Min(existing.MinLatency, latency)
	existing.MaxLatency = math.Max(existing.MaxLatency, latency)
	existing.AvgLatency = ((existing.AvgLatency * float64(existing.Samples)) + latency) / float64(newSamples)
	existing.PacketLoss = packetLoss
	existing.Samples = newSamples
	existing.UpdatedAt = time.Now()

	if err := p.DB.UpsertReachabilityStat(existing); err != nil {
		log.Printf("[Reachability] Failed to update stats: %v", err)
	}
}

// Ping sends one ICMP echo and returns the round-trip latency in
// milliseconds.
func Ping(host string, timeout time.Duration) (float64, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4:icmp", host)
	if err != nil {
		return 0, err
	}

	conn.SetDeadline(time.Now().Add(timeout))

	wm := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: make([]byte, 56),
		},
	}

	wb, err := wm.Marshal(nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: dst.IP}); err != nil {
		return 0, err
	}

	rb := make([]byte, 1500)
	respLen, _, err := conn.ReadFrom(rb)
	if err != nil {
		return 0, err
	}

	latency := float64(time.Since(start).Nanoseconds()) / 1e6

	rm, err := icmp.ParseMessage(int(ipv4.ICMPTypeEchoReply), rb[:respLen])
	if err != nil {
		return 0, err
	}

	switch rm.Type {
	case ipv4.ICMPTypeEchoReply:
	case ipv4.ICMPTypeDestinationUnreachable:
		return 0, fmt.Errorf("destination unreachable")
	}

	return latency, nil
}
