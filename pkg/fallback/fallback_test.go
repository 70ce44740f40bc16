package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirst(t *testing.T) {
	assert.Equal(t, "doctor", First("patient", "", "doctor", "admin"))
	assert.Equal(t, "patient", First("patient", "", "   ", ""))
	assert.Equal(t, "admin", First("patient", "admin"))
}

func TestResolveStopsAtFirstHit(t *testing.T) {
	evaluated := 0
	role := Resolve("patient",
		func() string { evaluated++; return "" },
		func() string { evaluated++; return "doctor" },
		func() string { evaluated++; return "admin" },
	)

	assert.Equal(t, "doctor", role)
	assert.Equal(t, 2, evaluated, "later sources must not be evaluated")
}

func TestResolveDefault(t *testing.T) {
	assert.Equal(t, "patient", Resolve("patient", nil, func() string { return " " }))
}
