// Package chrono rebuilds one execution order from the independently
// timestamped output of several processes.
//
// Each process prefixes its lines with a wall-clock time of day
// (HH:MM:SS.mmm). Arrival order at the harness says nothing about when a line
// was produced, so lines are re-sorted by that prefix. Lines without a prefix
// keep their arrival order and are reported separately.
//
// Times of day carry no date. By default a run is assumed not to cross
// midnight; Options.Rollover relaxes that per process.
package chrono

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SystemLabel marks events synthesized by the harness itself.
const SystemLabel = "SYSTEM"

// rolloverThreshold is how far a label's clock must jump backwards before it
// is treated as crossing midnight.
const rolloverThreshold = 12 * 60 * 60 * 1000

var (
	timestampPattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s`)
	stripPattern     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3}\s+`)
)

// Event is one line observed on a labeled stream. Seq is its arrival index
// and is the only arrival order Merge uses; slice position is ignored.
type Event struct {
	Seq   int    `json:"seq"`
	Label string `json:"label"`
	Line  string `json:"line"`
}

// Timestamp is a time of day with millisecond precision. Day is only moved
// off zero by rollover ordering.
type Timestamp struct {
	Day    int `json:"day,omitempty"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
	Millis int `json:"millis"`
}

// key returns the position of t on the ordering axis.
func (t Timestamp) key() int64 {
	return int64(t.Day)*24*60*60*1000 +
		int64(t.Hour)*60*60*1000 +
		int64(t.Minute)*60*1000 +
		int64(t.Second)*1000 +
		int64(t.Millis)
}

// Before reports whether t sorts strictly before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.key() < u.key()
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Millis)
}

// TimestampedLine is a line carrying a leading timestamp.
type TimestampedLine struct {
	Time  Timestamp `json:"time"`
	Label string    `json:"label"`
	Line  string    `json:"line"`
	Seq   int       `json:"seq"`
}

// Message is the line with its timestamp prefix removed.
func (l TimestampedLine) Message() string {
	return StripTimestamp(l.Line)
}

// UntimestampedLine is a line without a leading timestamp.
type UntimestampedLine struct {
	Label string `json:"label"`
	Line  string `json:"line"`
	Seq   int    `json:"seq"`
}

// MergedLog is the reconstructed execution log of one run.
type MergedLog struct {
	Timestamped   []TimestampedLine   `json:"timestamped"`
	Untimestamped []UntimestampedLine `json:"untimestamped,omitempty"`
}

// ByLabel returns the timestamped lines of one label in merged order.
func (m MergedLog) ByLabel(label string) []TimestampedLine {
	var out []TimestampedLine
	for _, l := range m.Timestamped {
		if l.Label == label {
			out = append(out, l)
		}
	}
	return out
}

// Messages returns the stripped messages of every timestamped line accepted
// by keep, in merged order. A nil keep accepts everything.
func (m MergedLog) Messages(keep func(TimestampedLine) bool) []string {
	var out []string
	for _, l := range m.Timestamped {
		if keep == nil || keep(l) {
			out = append(out, l.Message())
		}
	}
	return out
}

// Len is the number of lines in the log.
func (m MergedLog) Len() int {
	return len(m.Timestamped) + len(m.Untimestamped)
}

// Options tunes the merge.
type Options struct {
	// Rollover treats a backwards jump of more than twelve hours within one
	// label as a midnight crossing and orders the later lines after it.
	Rollover bool
}

// ParseTimestamp extracts the leading timestamp of line. The prefix must be
// followed by whitespace.
func ParseTimestamp(line string) (Timestamp, bool) {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return Timestamp{}, false
	}
	var parts [4]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Timestamp{}, false
		}
		parts[i] = n
	}
	return Timestamp{Hour: parts[0], Minute: parts[1], Second: parts[2], Millis: parts[3]}, true
}

// StripTimestamp removes a leading timestamp and the whitespace after it.
// Lines without a timestamp are returned unchanged.
func StripTimestamp(line string) string {
	loc := stripPattern.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return line[loc[1]:]
}

// Merge sorts timestamped events by time, ties broken by Seq, and collects
// the rest in Seq order. Events are first put in Seq order, so rollover
// detection and the untimestamped list follow Seq even when the slice does
// not. SYSTEM events always land in the untimestamped list. Merge does not
// modify events.
func Merge(events []Event, opts Options) MergedLog {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var log MergedLog
	last := make(map[string]Timestamp)
	for _, ev := range ordered {
		ts, ok := ParseTimestamp(ev.Line)
		if !ok || ev.Label == SystemLabel {
			log.Untimestamped = append(log.Untimestamped, UntimestampedLine{Label: ev.Label, Line: ev.Line, Seq: ev.Seq})
			continue
		}
		if opts.Rollover {
			if prev, seen := last[ev.Label]; seen {
				ts.Day = prev.Day
				if prev.key()-ts.key() > rolloverThreshold {
					ts.Day++
				}
			}
			last[ev.Label] = ts
		}
		log.Timestamped = append(log.Timestamped, TimestampedLine{Time: ts, Label: ev.Label, Line: ev.Line, Seq: ev.Seq})
	}

	sort.SliceStable(log.Timestamped, func(i, j int) bool {
		return log.Timestamped[i].Time.Before(log.Timestamped[j].Time)
	})
	return log
}

// Format renders the log the way the console report prints it: every
// timestamped line as "[LABEL   ] line", then the untimestamped lines under
// their own heading.
func Format(log MergedLog) string {
	var b strings.Builder
	for _, l := range log.Timestamped {
		fmt.Fprintf(&b, "[%-8s] %s\n", l.Label, l.Line)
	}
	if len(log.Untimestamped) > 0 {
		b.WriteString("\n--- Messages without timestamps ---\n")
		for _, l := range log.Untimestamped {
			fmt.Fprintf(&b, "[%-8s] %s\n", l.Label, l.Line)
		}
	}
	return b.String()
}
