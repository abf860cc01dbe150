package memkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetRemove(t *testing.T) {
	s := New()

	_, found, err := s.Get("a")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.Set("a", []byte("hello")))
	v, found, err := s.Get("a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), v)

	assert.NoError(t, s.Remove("a"))
	_, found, err = s.Get("a")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestStoredValuesAreCopiedNotAliased(t *testing.T) {
	s := New()
	buf := []byte("original")
	assert.NoError(t, s.Set("k", buf))
	buf[0] = 'X'

	v, _, _ := s.Get("k")
	assert.Equal(t, []byte("original"), v)

	v[0] = 'Y'
	v2, _, _ := s.Get("k")
	assert.Equal(t, []byte("original"), v2)
}
