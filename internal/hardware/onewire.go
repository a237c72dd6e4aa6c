package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultW1Root is where the w1 kernel driver exposes devices.
const DefaultW1Root = "/sys/bus/w1/devices"

// OneWire reads 1-Wire slaves through sysfs. Reads are serialized because a
// w1_slave read triggers a conversion on the shared line.
type OneWire struct {
	mu   sync.Mutex
	root string
}

// NewOneWire uses root, or DefaultW1Root when empty.
func NewOneWire(root string) *OneWire {
	if root == "" {
		root = DefaultW1Root
	}
	return &OneWire{root: root}
}

// ReadSlave returns the lines of the device's w1_slave file.
func (w *OneWire) ReadSlave(rom string) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(w.root, rom, "w1_slave"))
	if err != nil {
		return nil, fmt.Errorf("read w1 slave %s: %w", rom, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}

// Scan lists device ids whose name starts with prefix (e.g. "3b-" for MAX31850).
// An empty prefix lists every slave except the bus masters.
func (w *OneWire) Scan(prefix string) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("list w1 devices: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "w1_bus_master") {
			continue
		}
		if prefix == "" || strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
