package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainSSEEvents_CompleteBufferEmptiesAndReturnsPayloads(t *testing.T) {
	buffer := "data: hello\n\ndata: world\n\n"

	payloads := DrainSSEEvents(&buffer)

	assert.Equal(t, []string{"hello", "world"}, payloads)
	assert.Empty(t, buffer)
}

func TestDrainSSEEvents_MultilineDataJoined(t *testing.T) {
	buffer := "data: line one\ndata: line two\n\n"

	payloads := DrainSSEEvents(&buffer)

	assert.Equal(t, []string{"line one\nline two"}, payloads)
}

func TestDrainSSEEvents_DropsEventsWithNoDataLine(t *testing.T) {
	buffer := "event: ping\nid: 1\n\ndata: kept\n\n"

	payloads := DrainSSEEvents(&buffer)

	assert.Equal(t, []string{"kept"}, payloads)
}

func TestDrainSSEEvents_LeavesIncompleteEventInBuffer(t *testing.T) {
	buffer := "data: done\n\ndata: partial"

	payloads := DrainSSEEvents(&buffer)

	assert.Equal(t, []string{"done"}, payloads)
	assert.Equal(t, "data: partial", buffer)
}
