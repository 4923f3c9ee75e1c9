package nmea

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformed   = errors.New("nmea: malformed sentence")
	ErrChecksum    = errors.New("nmea: checksum mismatch")
	ErrUnsupported = errors.New("nmea: unsupported sentence")
)

// PrefixLen is the length of the "$" + talker + type prefix, e.g. "$GPMWV".
const PrefixLen = 6

// Kind identifies one of the whitelisted instrument sentences.
type Kind int

const (
	KindDPT Kind = iota + 1
	KindGGA
	KindHDG
	KindHDT
	KindMTW
	KindMWV
	KindRMC
	KindROT
	KindVHW
	KindVLW
	KindVTG
	KindZDA
)

var kindNames = map[Kind]string{
	KindDPT: "DPT",
	KindGGA: "GGA",
	KindHDG: "HDG",
	KindHDT: "HDT",
	KindMTW: "MTW",
	KindMWV: "MWV",
	KindRMC: "RMC",
	KindROT: "ROT",
	KindVHW: "VHW",
	KindVLW: "VLW",
	KindVTG: "VTG",
	KindZDA: "ZDA",
}

// whitelist maps the exact line prefix to the sentence kind. Only the GP
// talker is accepted; other talkers are treated as unknown instruments.
var whitelist = map[string]Kind{
	"$GPDPT": KindDPT,
	"$GPGGA": KindGGA,
	"$GPHDG": KindHDG,
	"$GPHDT": KindHDT,
	"$GPMTW": KindMTW,
	"$GPMWV": KindMWV,
	"$GPRMC": KindRMC,
	"$GPROT": KindROT,
	"$GPVHW": KindVHW,
	"$GPVLW": KindVLW,
	"$GPVTG": KindVTG,
	"$GPZDA": KindZDA,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Lookup reports the whitelisted kind for a raw line by its 6-character
// prefix. Lines shorter than the prefix are never whitelisted.
func Lookup(line string) (Kind, bool) {
	if len(line) < PrefixLen {
		return 0, false
	}
	k, ok := whitelist[line[:PrefixLen]]
	return k, ok
}

// Kinds returns every whitelisted kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindDPT; k <= KindZDA; k++ {
		out = append(out, k)
	}
	return out
}

type sentence struct {
	talker string
	kind   Kind
	// fields is the comma-split payload (excluding $ and checksum); fields[0]
	// is the talker+type.
	fields []string
}

func splitSentence(line string) (sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return sentence{}, fmt.Errorf("%w: missing '$'", ErrMalformed)
	}
	payload := line[1:]
	if star := strings.LastIndexByte(line, '*'); star != -1 {
		payload = line[1:star]
		ck := strings.TrimSpace(line[star+1:])
		if len(ck) < 2 {
			return sentence{}, fmt.Errorf("%w: short checksum", ErrMalformed)
		}
		want, err := hex.DecodeString(ck[:2])
		if err != nil || len(want) != 1 {
			return sentence{}, fmt.Errorf("%w: bad checksum", ErrMalformed)
		}
		if Checksum(payload) != want[0] {
			return sentence{}, ErrChecksum
		}
	}

	parts := strings.Split(payload, ",")
	head := parts[0]
	if len(head) != 5 {
		return sentence{}, fmt.Errorf("%w: bad address field %q", ErrMalformed, head)
	}
	k, ok := whitelist["$"+head]
	if !ok {
		return sentence{}, fmt.Errorf("%w: %s", ErrUnsupported, head)
	}
	return sentence{talker: head[:2], kind: k, fields: parts}, nil
}

// Checksum is the XOR of every byte between '$' and '*'.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// fieldReader decodes positional fields; the first decoding error sticks so
// decoders can read every field and check once.
type fieldReader struct {
	f   []string
	err error
}

func (r *fieldReader) raw(i int) (string, bool) {
	if i <= 0 || i >= len(r.f) {
		return "", false
	}
	s := strings.TrimSpace(r.f[i])
	return s, s != ""
}

func (r *fieldReader) float(i int, name string) *float64 {
	s, ok := r.raw(i)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isDecimal(s) {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s=%q", ErrMalformed, name, s)
		}
		return nil
	}
	return &v
}

// isDecimal accepts the plain [+-]digits[.digits] form of NMEA numeric
// fields. ParseFloat alone would also take NaN, Inf, exponents and hex.
func isDecimal(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func (r *fieldReader) int(i int, name string) *int {
	s, ok := r.raw(i)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s=%q", ErrMalformed, name, s)
		}
		return nil
	}
	return &v
}

func (r *fieldReader) str(i int) *string {
	s, ok := r.raw(i)
	if !ok {
		return nil
	}
	return &s
}
