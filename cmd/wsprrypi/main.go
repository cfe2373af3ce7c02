// Command wsprrypi is a software-defined WSPR beacon / carrier-tone
// generator for Raspberry Pi BCM283x/BCM2711 boards: it synthesizes RF
// directly from the GPIO4 clock output via DMA-paced clock-divider
// modulation (spec.md §1).
//
// Flag parsing follows the teacher's cmd/direwolf/main.go convention:
// one pflag.TypeP per option, a custom Usage func, then Parse before
// dispatch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lbussy/WsprryPi-sub001/internal/band"
	"github.com/lbussy/WsprryPi-sub001/internal/ctlserver"
	"github.com/lbussy/WsprryPi-sub001/internal/gpioaux"
	"github.com/lbussy/WsprryPi-sub001/internal/singleton"
	"github.com/lbussy/WsprryPi-sub001/internal/transmitter"
	"github.com/lbussy/WsprryPi-sub001/internal/txlog"
	"github.com/lbussy/WsprryPi-sub001/internal/wlog"
	"github.com/lbussy/WsprryPi-sub001/internal/wsprconfig"
)

var log = wlog.With("main")

func main() {
	configFile := pflag.StringP("config-file", "c", "/etc/wsprrypi.yaml", "Configuration file name.")
	debug := pflag.BoolP("debug", "d", false, "Enable debug-level logging.")
	testTone := pflag.StringP("test-tone", "t", "", "Transmit a continuous carrier at this band/frequency and exit on SIGINT.")
	loopTx := pflag.BoolP("loop", "r", false, "Loop transmissions indefinitely instead of running tx_iterations passes.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wsprrypi [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	wlog.SetLevel(*debug)

	cfg, err := wsprconfig.Load(*configFile)
	if err != nil {
		log.Error("configuration load failed", "error", err)
		os.Exit(1)
	}
	if *testTone != "" {
		cfg.Mode = "tone"
		cfg.TestTone = *testTone
	}
	if *loopTx {
		cfg.LoopTx = true
	}

	lock, err := singleton.Acquire(cfg.LockFile)
	if err != nil {
		log.Error("startup aborted", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	passLog, err := txlog.Open(cfg.LogDir)
	if err != nil {
		log.Error("pass log unavailable", "error", err)
		os.Exit(1)
	}
	defer passLog.Close()

	facade := transmitter.New()

	shutdownBtn, err := gpioaux.NewShutdownButton(cfg.GPIOChip, cfg.ShutdownPin, func() {
		log.Info("shutdown button pressed")
		facade.ShutdownTransmitter()
		os.Exit(0)
	})
	if err != nil {
		log.Warn("shutdown button unavailable", "error", err)
	} else {
		defer shutdownBtn.Close()
	}

	led, err := gpioaux.NewTXLed(cfg.GPIOChip, cfg.LEDPin)
	if err != nil {
		log.Warn("tx LED unavailable", "error", err)
	} else {
		defer led.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := ctlserver.New(facade, facade)
	go func() {
		if err := server.ListenAndServe(ctx, cfg.ControlPort, cfg.AdvertiseMDNS); err != nil {
			log.Error("control server exited", "error", err)
		}
	}()
	go func() {
		if err := server.ListenAndServeStatusWS(ctx, cfg.StatusWSPort); err != nil {
			log.Error("status websocket server exited", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down", "signal", sig)
		cancel()
		facade.ShutdownTransmitter()
		if err := facade.DMACleanup(); err != nil {
			log.Error("dma cleanup failed", "error", err)
		}
		os.Exit(0)
	}()

	runPasses(facade, cfg, passLog, led)
}

// runPasses drives one or more transmissions per the configured mode,
// either looping indefinitely (loop_tx) or running tx_iterations passes
// through the frequency list, one pass when tx_iterations is 0
// (spec.md's tx_iterations/loop_tx surface).
func runPasses(facade *transmitter.Facade, cfg wsprconfig.Config, passLog *txlog.Log, led *gpioaux.TXLed) {
	iterations := cfg.TxIterations
	if cfg.LoopTx {
		iterations = -1 // indefinite
	} else if iterations <= 0 {
		iterations = 1
	}

	freqList := cfg.Frequencies
	if cfg.Mode == "tone" {
		freqList = []string{cfg.TestTone}
	}

	for pass := 0; iterations < 0 || pass < iterations; pass++ {
		for _, token := range freqList {
			freqHz, is15, err := band.Resolve(token, true)
			if err != nil {
				log.Error("skipping unresolvable frequency", "token", token, "error", err)
				continue
			}
			if freqHz == 0 {
				continue // sentinel: skip this slot
			}

			params := transmitter.Params{
				TargetFreqHz: freqHz,
				IsWSPR15:     is15,
				IsTone:       cfg.Mode == "tone",
				PPMInit:      cfg.PPM,
				UseNTP:       cfg.UseNTP,
				Callsign:     cfg.Callsign,
				Locator:      cfg.GridSquare,
				PowerDBm:     cfg.PowerDBm,
				PowerLevel:   cfg.PowerLevel,
			}
			if cfg.UseOffset {
				params.OffsetHz = 1 // scheduler randomizes within Δ once set non-zero
			}

			if err := facade.Setup(params); err != nil {
				log.Error("setup_transmission failed", "error", err)
				continue
			}
			if err := facade.StartThreadedTransmission(); err != nil {
				log.Error("start_threaded_transmission failed", "error", err)
				continue
			}
			if led != nil {
				led.On()
			}
			facade.JoinTransmission()
			if led != nil {
				led.Off()
			}

			if err := passLog.Write(logEntryFor(params, is15)); err != nil {
				log.Warn("pass log write failed", "error", err)
			}
			time.Sleep(time.Second)
		}
	}
}

func logEntryFor(p transmitter.Params, is15 bool) txlog.Entry {
	mode := "WSPR-2"
	switch {
	case p.IsTone:
		mode = "TONE"
	case is15:
		mode = "WSPR-15"
	}
	return txlog.Entry{
		Timestamp: time.Now(),
		Mode:      mode,
		Callsign:  p.Callsign,
		Locator:   p.Locator,
		PowerDBm:  p.PowerDBm,
		FreqHz:    p.TargetFreqHz,
		OffsetHz:  p.OffsetHz,
		PPM:       p.PPMInit,
	}
}
