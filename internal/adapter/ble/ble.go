// Package ble holds the pieces shared by the BLE central backends: scan
// result collection, device choosers and backend options.
package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"bluepulse/internal/domain"
)

// DefaultScanTimeout bounds a scan when none is configured.
const DefaultScanTimeout = 5 * time.Second

// Options configures a hardware backend.
type Options struct {
	// HCIDevice is the index of the host controller (hci0 = 0).
	HCIDevice   int
	ScanTimeout time.Duration
	// Chooser picks a device during RequestDevice. Nil picks the strongest.
	Chooser domain.Chooser
	Logger  *slog.Logger
}

// Timeout returns the configured scan timeout or the default.
func (o Options) Timeout() time.Duration {
	if o.ScanTimeout <= 0 {
		return DefaultScanTimeout
	}
	return o.ScanTimeout
}

// Collector accumulates advertisements, keeping one entry per address.
type Collector struct {
	mu   sync.Mutex
	byID map[string]domain.DeviceInfo
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byID: make(map[string]domain.DeviceInfo)}
}

// Add records an advertisement. A later sighting refreshes RSSI and
// LastSeen, and a name is never replaced by an empty one.
func (c *Collector) Add(info domain.DeviceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(info.ID)
	if prev, ok := c.byID[key]; ok && info.Name == "" {
		info.Name = prev.Name
	}
	c.byID[key] = info
}

// List returns the devices sorted by signal strength, strongest first.
func (c *Collector) List() []domain.DeviceInfo {
	c.mu.Lock()
	out := make([]domain.DeviceInfo, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, d)
	}
	c.mu.Unlock()
	SortByRSSI(out)
	return out
}

// SortByRSSI orders devices strongest first, then by name and address.
func SortByRSSI(devices []domain.DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.RSSI != b.RSSI {
			return a.RSSI > b.RSSI
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// Choose runs chooser over devices and returns the picked entry. A nil
// chooser picks the first device.
func Choose(ctx context.Context, devices []domain.DeviceInfo, chooser domain.Chooser) (domain.DeviceInfo, error) {
	if len(devices) == 0 {
		return domain.DeviceInfo{}, domain.ErrNoDevicesFound
	}
	if chooser == nil {
		return devices[0], nil
	}
	id, err := chooser(ctx, devices)
	if err != nil {
		return domain.DeviceInfo{}, err
	}
	for _, d := range devices {
		if strings.EqualFold(d.ID, id) {
			return d, nil
		}
	}
	return domain.DeviceInfo{}, fmt.Errorf("chosen device %q was not seen: %w", id, domain.ErrNoDevicesFound)
}

// MatchChooser selects the device whose address or advertised name equals
// target, ignoring case. An empty target selects the first device. No
// match yields domain.ErrNoDevicesFound.
func MatchChooser(target string) domain.Chooser {
	target = strings.TrimSpace(target)
	return func(_ context.Context, devices []domain.DeviceInfo) (string, error) {
		if len(devices) == 0 {
			return "", domain.ErrNoDevicesFound
		}
		if target == "" {
			return devices[0].ID, nil
		}
		for _, d := range devices {
			if strings.EqualFold(d.ID, target) {
				return d.ID, nil
			}
		}
		for _, d := range devices {
			if d.Name != "" && strings.EqualFold(d.Name, target) {
				return d.ID, nil
			}
		}
		return "", fmt.Errorf("no device matching %q: %w", target, domain.ErrNoDevicesFound)
	}
}
