// cmd/usart_hostcheck/main.go
// Host side of the echo integrity test. Flash cmd/usart_echo, connect the
// board's USART to a USB serial adapter and run:
//
//	usart_hostcheck -profiles lines.yaml -profile bench -bytes 65536
//
// Each round sends a preamble and a deterministic pattern, then checks the
// echo byte for byte. The exit status is non-zero if any round fails.

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/internal/hostlink"
)

var (
	profilePath = flag.String("profiles", "", "YAML file of line profiles.")
	profileName = flag.String("profile", "", "Profile name (default: first in file).")
	portName    = flag.String("port", "", "Override the profile's serial port.")
	totalBytes  = flag.Int("bytes", 4096, "Payload bytes per round.")
	rounds      = flag.Int("rounds", 2, "Rounds, alternating patterns A and B.")
	perRound    = flag.Duration("timeout", 10*time.Second, "Deadline per round.")
)

func loadProfile() (config.Profile, error) {
	p := config.Default()
	if *profilePath != "" {
		f, err := config.Load(*profilePath)
		if err != nil {
			return p, err
		}
		if p, err = f.Lookup(*profileName); err != nil {
			return p, err
		}
	}
	if *portName != "" {
		p.Port = *portName
	}
	return p, nil
}

func main() {
	flag.Parse()
	defer glog.Flush()

	p, err := loadProfile()
	if err != nil {
		glog.Exitf("profile: %v", err)
	}
	link, err := hostlink.Open(p)
	if err != nil {
		glog.Exitf("%v", err)
	}
	defer link.Close()

	glog.Infof("profile %s on %s: %s, %d bytes x %d rounds", p.Name, p.Port, p.LineConfig(), *totalBytes, *rounds)

	pass, fail := 0, 0
	for i := 0; i < *rounds; i++ {
		gen, label := hostlink.PatternA, "A"
		if i%2 == 1 {
			gen, label = hostlink.PatternB, "B"
		}
		if err := link.Reset(); err != nil {
			glog.Warningf("reset: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), *perRound)
		res, err := link.Exchange(ctx, gen, *totalBytes)
		cancel()

		var mm *hostlink.Mismatch
		switch {
		case err == nil:
			pass++
			glog.Infof("[PASS] round %d pattern %s: %d bytes in %s (%.0f B/s)", i, label, res.Received, res.Elapsed, res.Rate())
		case errors.As(err, &mm):
			fail++
			glog.Errorf("[FAIL] round %d pattern %s: %v", i, label, err)
			glog.Errorf("  exp from %d: % X", mm.Start, mm.Want)
			glog.Errorf("  act from %d: % X", mm.Start, mm.Got)
		default:
			fail++
			glog.Errorf("[FAIL] round %d pattern %s: %v after %d/%d bytes", i, label, err, res.Received, *totalBytes)
		}
	}

	glog.Infof("summary: passed=%d failed=%d", pass, fail)
	if fail > 0 {
		glog.Flush()
		os.Exit(1)
	}
}
