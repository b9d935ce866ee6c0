package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Primitive range types a class field may declare.
const (
	RangeStr      = "str"
	RangeText     = "text"
	RangeInt      = "int"
	RangeFloat    = "float"
	RangeBool     = "bool"
	RangeDate     = "date"
	RangeDatetime = "datetime"
)

// Epoch is the sentinel substituted for unparseable dates and datetimes.
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// DateLayout is the cooked form of a date.
const DateLayout = "2006-01-02"

// DatetimeLayout is the cooked form of a datetime (always UTC).
const DatetimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// IsPrimitiveRange reports whether r names a primitive range rather than a class.
func IsPrimitiveRange(r string) bool {
	switch r {
	case RangeStr, RangeText, RangeInt, RangeFloat, RangeBool, RangeDate, RangeDatetime:
		return true
	}
	return false
}

// Cook converts a live field value into its wire form.
//
// Functional fields take a scalar; non-functional fields take a slice and
// cook element-wise. A nil value cooks to nil so the caller can omit it.
func Cook(rangeType string, functional bool, v any) (IRValue, error) {
	if v == nil {
		return nil, nil
	}
	if !functional {
		return cookMany(rangeType, v)
	}
	return cookOne(rangeType, v)
}

func cookOne(rangeType string, v any) (IRValue, error) {
	switch rangeType {
	case RangeStr, RangeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cook %s: want string, got %T", rangeType, v)
		}
		return IRString(norm.NFC.String(s)), nil
	case RangeInt:
		switch n := v.(type) {
		case int64:
			return IRInt(n), nil
		case int:
			return IRInt(n), nil
		}
	case RangeFloat:
		switch f := v.(type) {
		case float64:
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("cook float: non-finite value %v", f)
			}
			return IRFloat(f), nil
		case int64:
			return IRFloat(float64(f)), nil
		}
	case RangeBool:
		if b, ok := v.(bool); ok {
			return IRBool(b), nil
		}
	case RangeDate:
		if t, ok := v.(time.Time); ok {
			return IRString(t.Format(DateLayout)), nil
		}
	case RangeDatetime:
		if t, ok := v.(time.Time); ok {
			return IRString(t.UTC().Format(DatetimeLayout)), nil
		}
	default:
		return nil, fmt.Errorf("cook: unknown range %q", rangeType)
	}
	return nil, fmt.Errorf("cook %s: unsupported value type %T", rangeType, v)
}

func cookMany(rangeType string, v any) (IRValue, error) {
	var elems []any
	switch vals := v.(type) {
	case []any:
		elems = vals
	case []string:
		for _, s := range vals {
			elems = append(elems, s)
		}
	case []int64:
		for _, n := range vals {
			elems = append(elems, n)
		}
	case []float64:
		for _, f := range vals {
			elems = append(elems, f)
		}
	case []bool:
		for _, b := range vals {
			elems = append(elems, b)
		}
	case []time.Time:
		for _, t := range vals {
			elems = append(elems, t)
		}
	default:
		return nil, fmt.Errorf("cook %s list: unsupported value type %T", rangeType, v)
	}
	arr := make(IRArray, 0, len(elems))
	for i, e := range elems {
		c, err := cookOne(rangeType, e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr = append(arr, c)
	}
	return arr, nil
}

// Uncooked is the result of decoding one wire value.
type Uncooked struct {
	// Value is the live value: string, int64, float64, bool, time.Time, or a
	// slice of one of those for non-functional fields. Nil means unset.
	Value any

	// Fallback is set when the wire value could not be decoded and a
	// substitute (the epoch sentinel, or unset) was used instead.
	Fallback bool
}

// Uncook decodes a wire value per the field's range and cardinality.
// It never fails: undecodable dates become Epoch, other undecodable values
// become unset, and both are flagged with Fallback.
func Uncook(rangeType string, functional bool, v IRValue) Uncooked {
	if IsNull(v) {
		return Uncooked{}
	}
	if functional {
		val, ok := uncookOne(rangeType, v)
		return Uncooked{Value: val, Fallback: !ok}
	}

	arr, ok := v.(IRArray)
	if !ok {
		// a lone scalar for a list field is a list of one
		arr = IRArray{v}
	}
	fallback := false
	switch rangeType {
	case RangeInt:
		out := make([]int64, 0, len(arr))
		for _, e := range arr {
			if n, ok := uncookOne(rangeType, e); ok && n != nil {
				out = append(out, n.(int64))
			} else {
				fallback = true
			}
		}
		return Uncooked{Value: out, Fallback: fallback}
	case RangeFloat:
		out := make([]float64, 0, len(arr))
		for _, e := range arr {
			if f, ok := uncookOne(rangeType, e); ok && f != nil {
				out = append(out, f.(float64))
			} else {
				fallback = true
			}
		}
		return Uncooked{Value: out, Fallback: fallback}
	case RangeBool:
		out := make([]bool, 0, len(arr))
		for _, e := range arr {
			if b, ok := uncookOne(rangeType, e); ok && b != nil {
				out = append(out, b.(bool))
			} else {
				fallback = true
			}
		}
		return Uncooked{Value: out, Fallback: fallback}
	case RangeDate, RangeDatetime:
		out := make([]time.Time, 0, len(arr))
		for _, e := range arr {
			t, ok := uncookOne(rangeType, e)
			if !ok {
				fallback = true
			}
			if t != nil {
				out = append(out, t.(time.Time))
			}
		}
		return Uncooked{Value: out, Fallback: fallback}
	default:
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := uncookOne(rangeType, e); ok && s != nil {
				out = append(out, s.(string))
			} else {
				fallback = true
			}
		}
		return Uncooked{Value: out, Fallback: fallback}
	}
}

// uncookOne decodes a scalar. ok is false when a substitute was used.
func uncookOne(rangeType string, v IRValue) (any, bool) {
	if IsNull(v) {
		return nil, true
	}
	switch rangeType {
	case RangeInt:
		switch n := v.(type) {
		case IRInt:
			return int64(n), true
		case IRFloat:
			return int64(n), true
		case IRString:
			s := strings.TrimSpace(string(n))
			if s == "" {
				return nil, true
			}
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, true
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return int64(f), true
			}
		}
		return nil, false
	case RangeFloat:
		switch f := v.(type) {
		case IRFloat:
			return float64(f), true
		case IRInt:
			return float64(f), true
		case IRString:
			s := strings.TrimSpace(string(f))
			if s == "" {
				return nil, true
			}
			if parsed, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
				return parsed, true
			}
		}
		return nil, false
	case RangeBool:
		switch b := v.(type) {
		case IRBool:
			return bool(b), true
		case IRInt:
			return b != 0, true
		case IRString:
			switch strings.ToLower(strings.TrimSpace(string(b))) {
			case "true", "1", "yes":
				return true, true
			case "false", "0", "no", "":
				return false, true
			}
		}
		return nil, false
	case RangeDate:
		s, ok := v.(IRString)
		if !ok {
			return Epoch, false
		}
		t, ok := ParseTime(string(s))
		if !ok {
			return Epoch, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case RangeDatetime:
		s, ok := v.(IRString)
		if !ok {
			return Epoch, false
		}
		t, ok := ParseTime(string(s))
		if !ok {
			return Epoch, false
		}
		return t, true
	default:
		switch s := v.(type) {
		case IRString:
			return norm.NFC.String(string(s)), true
		case IRInt:
			return strconv.FormatInt(int64(s), 10), true
		case IRFloat:
			return strconv.FormatFloat(float64(s), 'g', -1, 64), true
		case IRBool:
			return strconv.FormatBool(bool(s)), true
		}
		return nil, false
	}
}

// timeLayouts are tried in order by ParseTime. Layouts without a zone are
// read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
	"2006/01/02",
	"20060102",
	"01/02/2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

// ParseTime parses a date or datetime string leniently.
// Returns false when no layout matches.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
