package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	// Vector conocido de sha256 para cadena vacia.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sum(nil))

	a := Sum([]byte("hola"))
	b := Sum([]byte("hola"))
	c := Sum([]byte("hola!"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMatches(t *testing.T) {
	data := []byte("contenido del archivo")
	sum := Sum(data)

	assert.True(t, Matches(sum, data))
	assert.False(t, Matches(sum, []byte("otro contenido")))
	assert.False(t, Matches("", data))
}
