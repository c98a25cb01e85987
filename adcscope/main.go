package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/adc"
	"github.com/itohio/adcscope/pkg/config"
)

type flags struct {
	config string
	port   string
	addr   string
	output string
	mock   bool
	debug  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "adcscope",
		Short: "Stream ADC samples from a serial device to a web dashboard",
		Long: `adcscope reads newline-delimited ADC values from a serial port, optionally
applies Butterworth low-pass and high-pass filters and pushes raw and filtered
blocks to every connected dashboard over WebSocket.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			logger, err := newLogger(f.debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("adcscope stopped with error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "config.yaml", "Configuration file path")
	pf.BoolVar(&f.debug, "debug", false, "Enable development logging")

	fl := root.Flags()
	fl.StringVarP(&f.port, "port", "p", "", "Serial port to open at startup (e.g. COM3 or /dev/ttyUSB0)")
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides config)")
	fl.StringVar(&f.output, "output", "", "Output directory for saved data (overrides config)")
	fl.BoolVar(&f.mock, "mock", false, "Offer a simulated device and start it unless a port is given")

	root.AddCommand(newPortsCmd())
	return root
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := adc.Ports()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tDESCRIPTION\tVID:PID\tSERIAL")
			for _, p := range ports {
				ids := ""
				if p.IsUSB {
					ids = p.VID + ":" + p.PID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Description, ids, p.SerialNumber)
			}
			return w.Flush()
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	if f.port != "" {
		cfg.Serial.Port = f.port
	}
	if f.addr != "" {
		cfg.HTTP.Addr = f.addr
	}
	if f.output != "" {
		cfg.Output.Dir = f.output
	}
	if cmd.Flags().Changed("mock") {
		cfg.Mock.Enabled = f.mock
		if f.mock && cfg.Serial.Port == "" {
			cfg.Serial.Port = adc.MockPortName
		}
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
