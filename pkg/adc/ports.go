package adc

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// MockPortName is the port identifier that selects the simulated device.
const MockPortName = "mock"

// Port represents a serial port.
type Port struct {
	Name         string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Ports returns a list of available serial ports sorted by name.
// USB details are filled in when the platform enumerator provides them.
func Ports() ([]Port, error) {
	detailed, err := enumerator.GetDetailedPortsList()
	if err == nil {
		result := make([]Port, 0, len(detailed))
		for _, p := range detailed {
			desc := p.Name
			if p.IsUSB && p.Product != "" {
				desc = p.Product
			}
			result = append(result, Port{
				Name:         p.Name,
				Description:  desc,
				IsUSB:        p.IsUSB,
				VID:          p.VID,
				PID:          p.PID,
				SerialNumber: p.SerialNumber,
			})
		}
		sortPorts(result)
		return result, nil
	}

	// Fall back to the plain list when detailed enumeration is unsupported
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}
	sortPorts(result)
	return result, nil
}

// PortNames returns just the identifiers of the available ports.
func PortNames() ([]string, error) {
	ports, err := Ports()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names, nil
}

func sortPorts(ports []Port) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
}
