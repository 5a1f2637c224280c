package provideradapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindJSONStartPlainObject(t *testing.T) {
	assert.Equal(t, 0, findJSONStart([]byte(`{"a":1}`)))
}

func TestFindJSONStartSkipsHTTPHeaders(t *testing.T) {
	data := []byte("Content-Type: application/json\r\n\r\n{\"a\":1}")
	idx := findJSONStart(data)
	assert.Equal(t, '{', rune(data[idx]))
}

func TestFindJSONStartReturnsNegativeOneForNonJSON(t *testing.T) {
	assert.Equal(t, -1, findJSONStart([]byte("plain text, no braces")))
}
