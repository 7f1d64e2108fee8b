package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/timeutil"
	"github.com/gpsbench/dragtimer/internal/units"
)

const (
	// hdopUere approximates the per-satellite user equivalent range error in
	// meters. Horizontal accuracy is estimated as HDOP * UERE.
	hdopUere = 5.0

	// unknownAccuracyM is reported until the receiver has sent an HDOP. The
	// value sits above any sensible accuracy lock bound so a run never arms
	// on a fix whose quality is unknown.
	unknownAccuracyM = 100.0
)

// Parser converts NMEA 0183 sentences into position samples. RMC sentences
// carry position and speed over ground; GGA sentences carry the HDOP used to
// estimate horizontal accuracy. The parser remembers the most recent HDOP
// across sentences, since receivers interleave the two types.
type Parser struct {
	clock    timeutil.Clock
	lastHDOP float64
	hasHDOP  bool
}

// NewParser returns a Parser stamping samples with the given clock. A nil
// clock defaults to the real clock.
func NewParser(clock timeutil.Clock) *Parser {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Parser{clock: clock}
}

// Parse consumes one NMEA sentence. It returns a sample for valid RMC
// sentences, nil for sentences that carry no position (GGA, void fixes,
// unrecognized types), and an error for malformed input.
func (p *Parser) Parse(line string) (*run.Sample, error) {
	payload, err := validateSentence(line)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(payload, ",")
	if len(fields[0]) < 5 {
		return nil, fmt.Errorf("short sentence type %q", fields[0])
	}

	// Field 0 is talker (2 chars) + sentence type; accept any talker.
	switch fields[0][2:] {
	case "RMC":
		return p.parseRMC(fields)
	case "GGA":
		return nil, p.parseGGA(fields)
	default:
		return nil, nil
	}
}

// validateSentence checks framing and checksum, returning the payload between
// the leading $ and the checksum delimiter.
func validateSentence(line string) (string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return "", fmt.Errorf("sentence missing $ prefix: %q", line)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line)-star != 3 {
		return "", fmt.Errorf("sentence missing checksum: %q", line)
	}

	payload := line[1:star]
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return "", fmt.Errorf("bad checksum field %q: %w", line[star+1:], err)
	}

	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	if sum != byte(want) {
		return "", fmt.Errorf("checksum mismatch: computed %02X, sentence says %02X", sum, want)
	}
	return payload, nil
}

// parseRMC handles the recommended minimum sentence:
//
//	xxRMC,time,status,lat,N/S,lon,E/W,speedKnots,course,date,...
func (p *Parser) parseRMC(fields []string) (*run.Sample, error) {
	if len(fields) < 10 {
		return nil, fmt.Errorf("RMC sentence has %d fields, want at least 10", len(fields))
	}
	if fields[2] != "A" {
		// Void fix, the receiver has no position solution.
		return nil, nil
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return nil, fmt.Errorf("RMC latitude: %w", err)
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return nil, fmt.Errorf("RMC longitude: %w", err)
	}

	s := &run.Sample{
		Lat:       lat,
		Lon:       lon,
		AccuracyM: p.accuracy(),
		Time:      p.clock.Now(),
	}

	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("RMC speed %q: %w", fields[7], err)
		}
		mps := units.KnotsToMps(knots)
		s.SpeedMps = &mps
	}

	return s, nil
}

// parseGGA extracts the HDOP from a fix-data sentence:
//
//	xxGGA,time,lat,N/S,lon,E/W,quality,numSats,hdop,...
func (p *Parser) parseGGA(fields []string) error {
	if len(fields) < 9 {
		return fmt.Errorf("GGA sentence has %d fields, want at least 9", len(fields))
	}
	if fields[6] == "0" || fields[6] == "" {
		// No fix, any previously stored HDOP is stale.
		p.hasHDOP = false
		return nil
	}
	if fields[8] == "" {
		return nil
	}
	hdop, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return fmt.Errorf("GGA hdop %q: %w", fields[8], err)
	}
	p.lastHDOP = hdop
	p.hasHDOP = true
	return nil
}

func (p *Parser) accuracy() float64 {
	if !p.hasHDOP {
		return unknownAccuracyM
	}
	return p.lastHDOP * hdopUere
}

// parseCoordinate converts NMEA ddmm.mmmm (or dddmm.mmmm) plus hemisphere into
// signed decimal degrees.
func parseCoordinate(value, hemi string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	deg := float64(int(raw / 100))
	minutes := raw - deg*100
	dec := deg + minutes/60

	switch hemi {
	case "N", "E":
		return dec, nil
	case "S", "W":
		return -dec, nil
	default:
		return 0, fmt.Errorf("unknown hemisphere %q", hemi)
	}
}
