package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("reservation", "tok-1").Msg("invoices reserved")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "invoices reserved")
	assert.Contains(t, out, "reservation=tok-1")
}
