package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const powerSupplyRoot = "/sys/class/power_supply"

// HostProbe reads battery state from the host's power-supply sysfs tree.
// Hosts without a battery return an error, which the reporter tolerates.
type HostProbe struct {
	root string
}

func NewHostProbe() *HostProbe {
	return &HostProbe{root: powerSupplyRoot}
}

func (p *HostProbe) Snapshot(ctx context.Context) (Snapshot, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read power supply tree: %w", err)
	}

	for _, entry := range entries {
		capacity, err := readSysfsValue(filepath.Join(p.root, entry.Name(), "capacity"))
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(capacity)
		if err != nil {
			continue
		}

		status, _ := readSysfsValue(filepath.Join(p.root, entry.Name(), "status"))

		return Snapshot{
			BatteryLevel: level,
			Charging:     status == "Charging",
			Connectivity: "unknown",
		}, nil
	}

	return Snapshot{}, fmt.Errorf("no battery under %s", p.root)
}

func readSysfsValue(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
