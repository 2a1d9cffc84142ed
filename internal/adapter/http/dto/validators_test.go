package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeStringRe(t *testing.T) {
	valid := []string{"CUP-0001", "BIKE_12", "station.north", "a1b2c3"}
	for _, s := range valid {
		assert.True(t, safeStringRe.MatchString(s), "%q should be accepted", s)
	}

	invalid := []string{"cup 0001", "label;drop", "<script>", "ä-umlaut", ""}
	for _, s := range invalid {
		assert.False(t, safeStringRe.MatchString(s), "%q should be rejected", s)
	}
}

func TestSanitizeStruct(t *testing.T) {
	extra := "  <i>note</i>  "
	req := struct {
		Name  string
		Extra *string
	}{
		Name:  "  <b>hello</b>  ",
		Extra: &extra,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "&lt;b&gt;hello&lt;/b&gt;", req.Name)
	assert.Equal(t, "&lt;i&gt;note&lt;/i&gt;", *req.Extra)
}

func TestSanitizeStruct_NonStruct(t *testing.T) {
	s := "untouched"
	SanitizeStruct(&s)
	SanitizeStruct(nil)
	assert.Equal(t, "untouched", s)
}
