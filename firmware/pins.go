//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 5  // ADC read interval in milliseconds
	NUM_SAMPLES        = 20 // Samples averaged per output line (10 lines per second)

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// ADC pin
	PIN_ADC = machine.A1

	// Serial configuration
	// Format "value\n", at most 5 bytes per line at 10 lines/sec.
	// 115200 matches the host default and leaves room for faster sampling.
	UART_BAUD_RATE = 115200
)
