package backend

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = `data: {"type":"partial_result","decision":{"rubric_item_id":"2","type":"CHECKBOX","confidence":0.9,"verdict":{"decision":"check","comment":"looks right","evidence":{"file":"main.py","lines":"10-20"}}}}

data: {"type":"partial_result","decision":{"rubric_item_id":"4","type":"RADIO","confidence":0.7,"verdict":{"selected_option":"Partial credit","comment":"edge case missed","evidence":{"file":"main.py","lines":"30-35"}}}}

data: {"type":"job_complete","message":"graded 2 items"}
`

// chunkedReader replays a byte stream with arbitrary chunk sizes.
type chunkedReader struct {
	data   []byte
	sizes  []int
	offset int
	turn   int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.offset >= len(c.data) {
		return 0, io.EOF
	}
	size := c.sizes[c.turn%len(c.sizes)]
	c.turn++
	if size > len(c.data)-c.offset {
		size = len(c.data) - c.offset
	}
	if size > len(p) {
		size = len(p)
	}
	n := copy(p, c.data[c.offset:c.offset+size])
	c.offset += n
	return n, nil
}

func collect(t *testing.T, r io.Reader) []Event {
	t.Helper()
	var events []Event
	require.NoError(t, ConsumeStream(r, func(ev Event) error {
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestConsumeStreamDecodesEventsInOrder(t *testing.T) {
	events := collect(t, strings.NewReader(sampleStream))
	require.Len(t, events, 3)

	first, ok := events[0].(PartialResult)
	require.True(t, ok)
	assert.Equal(t, "2", first.Decision.RubricItemID)
	assert.Equal(t, DecisionCheck, first.Decision.Verdict.Decision)
	assert.Equal(t, "main.py", first.Decision.Verdict.Evidence.File)

	second, ok := events[1].(PartialResult)
	require.True(t, ok)
	assert.Equal(t, "Partial credit", second.Decision.Verdict.SelectedOption)

	done, ok := events[2].(JobComplete)
	require.True(t, ok)
	assert.Equal(t, "graded 2 items", done.Message)
}

func TestConsumeStreamChunkingIsIrrelevant(t *testing.T) {
	whole := collect(t, strings.NewReader(sampleStream))

	for _, sizes := range [][]int{{1}, {2, 3}, {7}, {64}, {1, 100}} {
		chunked := collect(t, &chunkedReader{data: []byte(sampleStream), sizes: sizes})
		assert.Equal(t, whole, chunked, "chunk sizes %v", sizes)
	}
}

func TestConsumeStreamTrailingLineWithoutNewline(t *testing.T) {
	stream := `data: {"type":"job_complete","message":"done"}`
	events := collect(t, strings.NewReader(stream))
	require.Len(t, events, 1)
	assert.Equal(t, JobComplete{Message: "done"}, events[0])
}

func TestConsumeStreamSkipsMalformedLines(t *testing.T) {
	stream := "data: {not json}\n" +
		": keepalive comment\n" +
		"event: partial_result\n" +
		`data: {"type":"job_complete","message":"ok"}` + "\n"
	events := collect(t, strings.NewReader(stream))
	require.Len(t, events, 1)
	assert.Equal(t, JobComplete{Message: "ok"}, events[0])
}

func TestConsumeStreamErrorEvents(t *testing.T) {
	bare := `data: {"error":"model overloaded"}` + "\n"
	events := collect(t, strings.NewReader(bare))
	require.Len(t, events, 1)
	assert.Equal(t, StreamError{Message: "model overloaded"}, events[0])

	typed := `data: {"type":"error","message":"job failed"}` + "\n"
	events = collect(t, strings.NewReader(typed))
	require.Len(t, events, 1)
	assert.Equal(t, StreamError{Message: "job failed"}, events[0])
}

func TestConsumeStreamSinkErrorStops(t *testing.T) {
	boom := errors.New("sink failed")
	calls := 0
	err := ConsumeStream(strings.NewReader(sampleStream), func(Event) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestConsumeStreamHandlesCRLF(t *testing.T) {
	stream := "data: {\"type\":\"job_complete\",\"message\":\"done\"}\r\n"
	events := collect(t, strings.NewReader(stream))
	require.Len(t, events, 1)
	assert.Equal(t, JobComplete{Message: "done"}, events[0])
}
