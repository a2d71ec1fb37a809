package chrono

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		line   string
		want   Timestamp
		wantOK bool
	}{
		{line: "12:00:00.100 hello", want: Timestamp{Hour: 12, Second: 0, Millis: 100}, wantOK: true},
		{line: "23:59:59.999\tx", want: Timestamp{Hour: 23, Minute: 59, Second: 59, Millis: 999}, wantOK: true},
		{line: "12:00:00.100", wantOK: false},
		{line: "12:00:00.10 short millis", wantOK: false},
		{line: " 12:00:00.100 leading space", wantOK: false},
		{line: "hello 12:00:00.100 x", wantOK: false},
		{line: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStripTimestamp(t *testing.T) {
	assert.Equal(t, "hello world", StripTimestamp("12:00:00.100   hello world"))
	assert.Equal(t, "no timestamp", StripTimestamp("no timestamp"))
	assert.Equal(t, "", StripTimestamp("12:00:00.100 "))
}

func TestMerge_OrdersByTimestampNotArrival(t *testing.T) {
	events := []Event{
		{Seq: 0, Label: "CLIENT0", Line: "12:00:00.200 B"},
		{Seq: 1, Label: "SERVER", Line: "12:00:00.100 A"},
		{Seq: 2, Label: "CLIENT0", Line: "no timestamp"},
		{Seq: 3, Label: SystemLabel, Line: "All clients finished. Shutting down server..."},
	}

	log := Merge(events, Options{})

	require.Len(t, log.Timestamped, 2)
	assert.Equal(t, "SERVER", log.Timestamped[0].Label)
	assert.Equal(t, "CLIENT0", log.Timestamped[1].Label)

	require.Len(t, log.Untimestamped, 2)
	assert.Equal(t, "no timestamp", log.Untimestamped[0].Line)
	assert.Equal(t, SystemLabel, log.Untimestamped[1].Label)
	assert.Equal(t, 4, log.Len())
}

func TestMerge_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	events := []Event{
		{Seq: 0, Label: "CLIENT1", Line: "10:00:00.000 first"},
		{Seq: 1, Label: "SERVER", Line: "10:00:00.000 second"},
		{Seq: 2, Label: "CLIENT0", Line: "10:00:00.000 third"},
	}

	log := Merge(events, Options{})
	assert.Equal(t, []string{"first", "second", "third"}, log.Messages(nil))
}

func TestMerge_IsDeterministicForShuffledInput(t *testing.T) {
	events := []Event{
		{Seq: 2, Label: "SERVER", Line: "10:00:00.005 c"},
		{Seq: 0, Label: "SERVER", Line: "10:00:00.005 a"},
		{Seq: 1, Label: "CLIENT0", Line: "10:00:00.001 b"},
	}

	first := Merge(events, Options{})
	second := Merge(events, Options{})
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"b", "a", "c"}, first.Messages(nil))
}

func TestMerge_SeqDefinesArrivalOrder(t *testing.T) {
	events := []Event{
		{Seq: 3, Label: "SERVER", Line: "00:00:00.100 after midnight"},
		{Seq: 2, Label: "CLIENT0", Line: "late"},
		{Seq: 0, Label: "SERVER", Line: "23:59:59.900 before midnight"},
		{Seq: 1, Label: "CLIENT0", Line: "early"},
	}

	log := Merge(events, Options{Rollover: true})
	assert.Equal(t, []string{"before midnight", "after midnight"}, log.Messages(nil))
	require.Len(t, log.Untimestamped, 2)
	assert.Equal(t, "early", log.Untimestamped[0].Line)
	assert.Equal(t, "late", log.Untimestamped[1].Line)
}

func TestMerge_Rollover(t *testing.T) {
	events := []Event{
		{Seq: 0, Label: "SERVER", Line: "23:59:59.900 before midnight"},
		{Seq: 1, Label: "SERVER", Line: "00:00:00.100 after midnight"},
		{Seq: 2, Label: "CLIENT0", Line: "23:59:59.950 client late"},
	}

	plain := Merge(events, Options{})
	assert.Equal(t, []string{"after midnight", "before midnight", "client late"}, plain.Messages(nil))

	rolled := Merge(events, Options{Rollover: true})
	assert.Equal(t, []string{"before midnight", "client late", "after midnight"}, rolled.Messages(nil))
	assert.Equal(t, 1, rolled.Timestamped[2].Time.Day)
}

func TestMerge_SmallBackwardsJumpIsNotRollover(t *testing.T) {
	events := []Event{
		{Seq: 0, Label: "SERVER", Line: "12:00:01.000 later"},
		{Seq: 1, Label: "SERVER", Line: "12:00:00.000 earlier"},
	}

	log := Merge(events, Options{Rollover: true})
	assert.Equal(t, []string{"earlier", "later"}, log.Messages(nil))
}

func TestMergedLog_ByLabelAndMessages(t *testing.T) {
	log := Merge([]Event{
		{Seq: 0, Label: "SERVER", Line: "10:00:00.000 s1"},
		{Seq: 1, Label: "CLIENT0", Line: "10:00:00.001 c1"},
		{Seq: 2, Label: "SERVER", Line: "10:00:00.002 s2"},
	}, Options{})

	server := log.ByLabel("SERVER")
	require.Len(t, server, 2)
	assert.Equal(t, "s2", server[1].Message())

	clients := log.Messages(func(l TimestampedLine) bool { return l.Label != "SERVER" })
	assert.Equal(t, []string{"c1"}, clients)
}

func TestFormat(t *testing.T) {
	log := Merge([]Event{
		{Seq: 0, Label: "SERVER", Line: "10:00:00.000 up"},
		{Seq: 1, Label: SystemLabel, Line: "done"},
	}, Options{})

	want := "[SERVER  ] 10:00:00.000 up\n" +
		"\n--- Messages without timestamps ---\n" +
		"[SYSTEM  ] done\n"
	assert.Equal(t, want, Format(log))
}

func TestTimestamp_String(t *testing.T) {
	assert.Equal(t, "01:02:03.004", Timestamp{Hour: 1, Minute: 2, Second: 3, Millis: 4}.String())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "CLIENT3", ClientLabel(3))

	id, ok := ClientID("CLIENT12")
	assert.True(t, ok)
	assert.Equal(t, "12", id)

	_, ok = ClientID(ServerLabel)
	assert.False(t, ok)
	assert.False(t, IsClientLabel(SystemLabel))
}
