// Package felt converts between domain values and the field-element strings
// used as contract call arguments and results. Field elements travel as
// their canonical hex or decimal literal and are never reinterpreted on the
// way out; integer decoding accepts both 0x-hex and decimal.
package felt

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// maxUnixSeconds is 9999-12-31T23:59:59Z. Larger values cannot be rendered
// as calendar instants.
const maxUnixSeconds = 253402300799

var (
	two128  = new(big.Int).Lsh(big.NewInt(1), 128)
	mask128 = new(big.Int).Sub(two128, big.NewInt(1))
)

// FromText validates a caller-supplied field element. It returns the trimmed
// literal unchanged, or ErrInvalidArgument when nothing is left.
func FromText(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("felt: %w: missing felt value", domain.ErrInvalidArgument)
	}
	return trimmed, nil
}

// FromTexts applies FromText to every element, failing on the first empty one.
func FromTexts(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		f, err := FromText(v)
		if err != nil {
			return nil, fmt.Errorf("felt: element %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// FromUint encodes n as a decimal felt.
func FromUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// FromSide encodes an outcome as 1 (yes) or 0 (no).
func FromSide(side domain.PositionSide) (string, error) {
	switch side {
	case domain.SideYes:
		return "1", nil
	case domain.SideNo:
		return "0", nil
	default:
		return "", fmt.Errorf("felt: %w: unknown outcome %q", domain.ErrInvalidArgument, side)
	}
}

// SecondsFromTime converts t to whole Unix seconds. Zero, pre-epoch and
// epoch instants are rejected.
func SecondsFromTime(t time.Time) (string, error) {
	if t.IsZero() || t.Unix() <= 0 {
		return "", fmt.Errorf("felt: %w: invalid end time", domain.ErrInvalidArgument)
	}
	if t.Unix() > maxUnixSeconds {
		return "", fmt.Errorf("felt: %w: end time out of range", domain.ErrInvalidArgument)
	}
	return strconv.FormatInt(t.Unix(), 10), nil
}

// SecondsFromISO parses an RFC 3339 timestamp and converts it with
// SecondsFromTime.
func SecondsFromISO(s string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("felt: %w: invalid end time %q", domain.ErrInvalidArgument, s)
	}
	return SecondsFromTime(t)
}

// Span frames a list for a list-typed contract parameter: the element count
// followed by the elements.
func Span(values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, strconv.Itoa(len(values)))
	return append(out, values...)
}

// EncodeProof appends the program hash, the length-prefixed public inputs
// and the length-prefixed proof, in that order.
func EncodeProof(p domain.ProofArtifact) ([]string, error) {
	programHash, err := FromText(p.ProgramHash)
	if err != nil {
		return nil, fmt.Errorf("felt: program hash: %w", err)
	}
	inputs, err := FromTexts(p.PublicInputs)
	if err != nil {
		return nil, fmt.Errorf("felt: public inputs: %w", err)
	}
	proof, err := FromTexts(p.Proof)
	if err != nil {
		return nil, fmt.Errorf("felt: proof: %w", err)
	}

	out := make([]string, 0, 3+len(inputs)+len(proof))
	out = append(out, programHash)
	out = append(out, Span(inputs)...)
	out = append(out, Span(proof)...)
	return out, nil
}

// SplitU256 splits a full-precision amount into its low and high 128-bit
// halves, both rendered as decimal felts.
func SplitU256(amount string) (low, high string, err error) {
	trimmed, err := FromText(amount)
	if err != nil {
		return "", "", fmt.Errorf("felt: amount: %w", err)
	}
	n, err := parseInt(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("felt: amount: %w", err)
	}
	lo := new(big.Int).And(n, mask128)
	hi := new(big.Int).Rsh(n, 128)
	return lo.String(), hi.String(), nil
}

// JoinU256 is the inverse of SplitU256. A missing high half is zero.
func JoinU256(low, high string) (string, error) {
	lo, err := parseInt(low)
	if err != nil {
		return "", fmt.Errorf("felt: low half: %w", err)
	}
	hi, err := parseInt(high)
	if err != nil {
		return "", fmt.Errorf("felt: high half: %w", err)
	}
	if lo.Cmp(two128) >= 0 || hi.Cmp(two128) >= 0 {
		return "", fmt.Errorf("felt: %w: u256 half exceeds 128 bits", domain.ErrInvalidArgument)
	}
	return new(big.Int).Or(new(big.Int).Lsh(hi, 128), lo).String(), nil
}

// IsZero reports whether f is the zero sentinel ("0", "0x0", "0x000", or
// empty). Unparsable literals are not zero.
func IsZero(f string) bool {
	n, err := parseInt(f)
	if err != nil {
		return false
	}
	return n.Sign() == 0
}

// parseInt parses a non-negative integer of at most 256 bits. An empty
// string is zero.
func parseInt(f string) (*big.Int, error) {
	n, ok := math.ParseBig256(strings.TrimSpace(f))
	if !ok {
		return nil, fmt.Errorf("felt: %w: not an integer: %q", domain.ErrInvalidArgument, f)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("felt: %w: negative value %q", domain.ErrInvalidArgument, f)
	}
	return n, nil
}

// Hex re-encodes an integer felt as 0x-prefixed lowercase hex, the form
// node RPC endpoints require.
func Hex(f string) (string, error) {
	n, err := parseInt(f)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeBig(n), nil
}
