// Command replay feeds a recorded NMEA log, or a pcap capture of forwarded
// UDP NMEA traffic, through the full sample pipeline offline and prints the
// resulting record. Useful for re-scoring a drive after tuning changes.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/gpsbench/dragtimer/internal/config"
	"github.com/gpsbench/dragtimer/internal/feed"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/timeutil"
)

var (
	inFile     = flag.String("file", "", "NMEA log (.nmea/.log/.txt) or pcap capture (.pcap)")
	configPath = flag.String("config", "", "Tuning config JSON path")
	mode       = flag.String("mode", "", "Override test mode (201, 402, 0-100, 0-140, 60-100)")
	interval   = flag.Duration("interval", 100*time.Millisecond, "Sample spacing for text logs (pcap uses capture timestamps)")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("-file is required")
	}

	tuning := config.EmptyRunTuning()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadRunTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	cfg := tuning.RunConfig()
	if *mode != "" {
		cfg.Mode = run.Mode(*mode)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid mode override: %v", err)
		}
	}

	clock := timeutil.NewMockClock(time.Now())
	machine, err := run.NewMachine(cfg, clock)
	if err != nil {
		log.Fatalf("failed to build run machine: %v", err)
	}
	parser := feed.NewParser(clock)
	machine.Arm()

	f, err := os.Open(*inFile)
	if err != nil {
		log.Fatalf("failed to open input: %v", err)
	}
	defer f.Close()

	var sentences int
	if filepath.Ext(*inFile) == ".pcap" {
		sentences = replayPcap(f, clock, parser, machine)
	} else {
		sentences = replayText(f, clock, parser, machine)
	}
	log.Printf("replayed %d sentences", sentences)

	rec := machine.Record()
	if rec == nil {
		tel := machine.Telemetry()
		log.Printf("run did not finish: state=%s distance=%.1f m peak=%.1f km/h",
			tel.State, tel.DistanceM, tel.PeakSpeedKmh)
		return
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal record: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}

func replayText(r io.Reader, clock *timeutil.MockClock, parser *feed.Parser, machine *run.Machine) int {
	scan := bufio.NewScanner(r)
	n := 0
	for scan.Scan() {
		clock.Advance(*interval)
		submitLine(scan.Text(), parser, machine)
		n++
	}
	if err := scan.Err(); err != nil {
		log.Fatalf("failed to read log: %v", err)
	}
	return n
}

// replayPcap walks a capture of UDP NMEA datagrams, using the capture
// timestamps as the sample clock.
func replayPcap(f *os.File, clock *timeutil.MockClock, parser *feed.Parser, machine *run.Machine) int {
	reader, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("failed to read pcap: %v", err)
	}

	n := 0
	for {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to read packet: %v", err)
		}

		pkt := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}

		clock.Set(ci.Timestamp)
		payload := string(udpLayer.(*layers.UDP).Payload)
		for _, line := range strings.Split(payload, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			submitLine(line, parser, machine)
			n++
		}
	}
	return n
}

func submitLine(line string, parser *feed.Parser, machine *run.Machine) {
	sample, err := parser.Parse(line)
	if err != nil {
		log.Printf("dropping sentence: %v", err)
		return
	}
	if sample != nil {
		machine.Submit(*sample)
	}
}
