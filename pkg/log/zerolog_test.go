package log

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologAdapter_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	z.Debug("hidden", String("k", "v"))
	assert.Empty(t, buf.String())

	z.Info("state transition",
		String("from", "PAUSING"),
		Int("count", 2),
		Bool("timedOut", true),
		Duration("after", 500*time.Millisecond),
		Err(errors.New("boom")),
	)
	out := buf.String()
	assert.Contains(t, out, `"from":"PAUSING"`)
	assert.Contains(t, out, `"count":2`)
	assert.Contains(t, out, `"timedOut":true`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	child := z.With(String("token", "abc"))
	child.Warn("pause timeout")

	assert.Contains(t, buf.String(), `"token":"abc"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestStringerNil(t *testing.T) {
	f := Stringer("x", nil)
	assert.Equal(t, "<nil>", f.Value)
}
