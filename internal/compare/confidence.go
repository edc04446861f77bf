package compare

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is the marker written when no confidence can be given.
const NotAvailable = "N/A"

var hundred = decimal.NewFromInt(100)

// Confidence is either a numeric score in [0,100] or "N/A". When decoded
// from JSON it remembers the original token so unmatched entities can be
// written back unchanged.
type Confidence struct {
	score float64
	known bool
	raw   json.RawMessage
}

// Score returns a numeric confidence.
func Score(v float64) Confidence {
	return Confidence{score: v, known: true}
}

// NA returns the "N/A" confidence.
func NA() Confidence {
	return Confidence{}
}

// Float64 returns the numeric score, if there is one. Numeric strings
// such as "80" count as scores.
func (c Confidence) Float64() (float64, bool) {
	return c.score, c.known
}

func (c Confidence) String() string {
	if !c.known {
		return NotAvailable
	}
	return strconv.FormatFloat(c.score, 'f', -1, 64)
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	if !c.known {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(c.score)
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	*c = parseConfidence(data)
	return nil
}

func parseConfidence(data []byte) Confidence {
	raw := append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	c := Confidence{raw: raw}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return c
	}
	switch n := v.(type) {
	case float64:
		c.score, c.known = n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			c.score, c.known = f, true
		}
	}
	return c
}

// Fuse combines two confidences as a probabilistic OR,
// (1 - (1-c1/100)(1-c2/100)) * 100, rounded to two decimals. The result is
// "N/A" unless both sides are numeric.
func Fuse(c1, c2 Confidence) Confidence {
	f1, ok1 := c1.Float64()
	f2, ok2 := c2.Float64()
	if !ok1 || !ok2 {
		return NA()
	}

	one := decimal.NewFromInt(1)
	miss1 := one.Sub(decimal.NewFromFloat(f1).Div(hundred))
	miss2 := one.Sub(decimal.NewFromFloat(f2).Div(hundred))
	combined := one.Sub(miss1.Mul(miss2)).Mul(hundred).Round(2)

	v, _ := combined.Float64()
	return Score(v)
}
