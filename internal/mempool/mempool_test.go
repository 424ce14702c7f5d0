package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPutInt(t *testing.T) {
	buf := GetInt(100)
	assert.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 100)
	PutInt(buf)

	// Large sizes round to the next bucket.
	big := GetInt(5000)
	assert.Len(t, big, 5000)
	PutInt(big)

	// Nil is accepted.
	PutInt(nil)
}

func TestReuse(t *testing.T) {
	buf := GetInt(10)
	for i := range buf {
		buf[i] = i
	}
	PutInt(buf)
	again := GetInt(10)
	assert.Len(t, again, 10)
	PutInt(again)
}
