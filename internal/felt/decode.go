package felt

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Epoch is returned by lenient time decoding for unusable values.
var Epoch = time.Unix(0, 0).UTC()

// Policy selects how malformed results are decoded.
type Policy int

const (
	// Lenient maps unusable timestamps to Epoch and any side other than 1
	// to "no". Intended for display paths.
	Lenient Policy = iota
	// Strict rejects those values with ErrInvalidArgument.
	Strict
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// Decoder decodes result felts under a Policy. Integer parse failures in
// Bool and Uint are errors under both policies.
type Decoder struct {
	Policy Policy
}

var (
	LenientDecoder = Decoder{Policy: Lenient}
	StrictDecoder  = Decoder{Policy: Strict}
)

// Time decodes Unix seconds into a UTC instant.
func (d Decoder) Time(f string) (time.Time, error) {
	n, err := parseInt(f)
	if err != nil || n.Sign() <= 0 || !n.IsInt64() || n.Int64() > maxUnixSeconds {
		if d.Policy == Lenient {
			return Epoch, nil
		}
		return time.Time{}, fmt.Errorf("felt: %w: unusable timestamp %q", domain.ErrInvalidArgument, f)
	}
	return time.Unix(n.Int64(), 0).UTC(), nil
}

// Side decodes an outcome: 1 is yes. Under Lenient every other value,
// garbage included, is no; under Strict only 0 is no.
func (d Decoder) Side(f string) (domain.PositionSide, error) {
	n, err := parseInt(f)
	if err == nil && n.IsInt64() {
		switch n.Int64() {
		case 1:
			return domain.SideYes, nil
		case 0:
			return domain.SideNo, nil
		}
	}
	if d.Policy == Lenient {
		return domain.SideNo, nil
	}
	return "", fmt.Errorf("felt: %w: unknown outcome %q", domain.ErrInvalidArgument, f)
}

// Bool reports whether the element's integer value is nonzero.
func (d Decoder) Bool(f string) (bool, error) {
	n, err := parseInt(f)
	if err != nil {
		return false, err
	}
	return n.Sign() != 0, nil
}

// Uint decodes a counter that must fit in 64 bits.
func (d Decoder) Uint(f string) (uint64, error) {
	n, err := parseInt(f)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("felt: %w: value %q overflows uint64", domain.ErrInvalidArgument, f)
	}
	return n.Uint64(), nil
}

// TimeFromSeconds is Lenient time decoding.
func TimeFromSeconds(f string) time.Time {
	t, _ := LenientDecoder.Time(f)
	return t
}

// SideFromFelt is Lenient side decoding.
func SideFromFelt(f string) domain.PositionSide {
	s, _ := LenientDecoder.Side(f)
	return s
}
