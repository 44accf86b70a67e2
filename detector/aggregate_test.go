package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscope/detector/models"
)

func TestAggregateOrdersByRegistrationThenLocation(t *testing.T) {
	order := map[models.APIType]int{
		models.TypeREST:      0,
		models.TypeWebSocket: 1,
		models.TypeGRPC:      2,
	}
	defs := []models.APIDefinition{
		{Type: models.TypeGRPC, SourceFile: "a.proto", SourceLine: 1, Name: "Svc"},
		{Type: models.TypeREST, SourceFile: "b.py", SourceLine: 9, Name: "GET /b"},
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 5, Name: "GET /a"},
		{Type: models.TypeWebSocket, SourceFile: "a.py", SourceLine: 2, Name: "WS /a"},
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 1, Name: "GET /root"},
	}

	out := aggregate(order, defs)
	require.Len(t, out, 5)
	assert.Equal(t, "GET /root", out[0].Name)
	assert.Equal(t, "GET /a", out[1].Name)
	assert.Equal(t, "GET /b", out[2].Name)
	assert.Equal(t, "WS /a", out[3].Name)
	assert.Equal(t, "Svc", out[4].Name)
}

func TestAggregateDropsExactDuplicates(t *testing.T) {
	order := map[models.APIType]int{models.TypeREST: 0}
	defs := []models.APIDefinition{
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 1, Name: "GET /a"},
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 1, Name: "GET /a"},
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 2, Name: "GET /a"},
	}

	out := aggregate(order, defs)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].SourceLine)
	assert.Equal(t, 2, out[1].SourceLine)
}

func TestAggregateInputOrderDoesNotLeak(t *testing.T) {
	order := map[models.APIType]int{models.TypeREST: 0, models.TypeGRPC: 1}
	a := []models.APIDefinition{
		{Type: models.TypeGRPC, SourceFile: "s.proto", SourceLine: 1, Name: "Svc"},
		{Type: models.TypeREST, SourceFile: "a.py", SourceLine: 1, Name: "GET /a"},
	}
	b := []models.APIDefinition{a[1], a[0]}

	assert.Equal(t, aggregate(order, a), aggregate(order, b))
}
