//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adc machine.ADC

	// Running sum of the current averaging window
	sum   uint32
	count int

	lastRead time.Time
)

func main() {
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adc = machine.ADC{Pin: PIN_ADC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	machine.Serial.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastRead = time.Now()

	for {
		now := time.Now()

		if now.Sub(lastRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			readADC()
			lastRead = now
		}

		if count >= NUM_SAMPLES {
			outputAverage()
			sum = 0
			count = 0
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func readADC() {
	// Get returns a 16 bit value regardless of the configured resolution
	sum += uint32(adc.Get() >> (16 - ADC_RESOLUTION))
	count++
}

// outputAverage writes one value per line: "2048\n".
func outputAverage() {
	n := count
	if n == 0 {
		n = 1
	}
	print(sum / uint32(n))
	print("\n")
}
