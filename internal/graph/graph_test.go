package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("create edge: %w", &EndpointError{Missing: []apptype.EntityRef{{Label: apptype.Drug, Name: "阿莫西林"}}})
	assert.True(t, errors.Is(err, ErrMissingEndpoint))
	assert.False(t, errors.Is(err, ErrDuplicate))

	var ee *EndpointError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "阿莫西林", ee.Missing[0].Name)
	assert.Contains(t, err.Error(), "Drug(阿莫西林)")
}

func TestTraversalQueryValidate(t *testing.T) {
	ok := TraversalQuery{From: apptype.EntityRef{Label: apptype.Symptom, Name: "头痛"}, Relation: apptype.HasSymptom, Direction: Incoming}
	assert.NoError(t, ok.Validate())

	cases := []TraversalQuery{
		{Relation: apptype.HasSymptom},
		{From: apptype.EntityRef{Name: "头痛"}},
		{From: apptype.EntityRef{Name: "头痛"}, Relation: apptype.HasSymptom, Direction: Direction(7)},
	}
	for _, q := range cases {
		assert.ErrorIs(t, q.Validate(), ErrInvalidQuery)
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("IN")
	require.NoError(t, err)
	assert.Equal(t, Incoming, d)
	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Outgoing, d)
	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("has_symptom"))
	assert.True(t, ValidIdentifier("Disease"))
	assert.False(t, ValidIdentifier("a-b"))
	assert.False(t, ValidIdentifier("x') OR 1=1 --"))
	assert.False(t, ValidIdentifier(""))
}

func TestStatsTotals(t *testing.T) {
	s := Stats{
		Nodes:         map[apptype.EntityType]int{apptype.Disease: 2, apptype.Symptom: 3},
		Relationships: map[apptype.RelationType]int{apptype.HasSymptom: 4},
	}
	assert.Equal(t, 5, s.TotalNodes())
	assert.Equal(t, 4, s.TotalRelationships())
}
