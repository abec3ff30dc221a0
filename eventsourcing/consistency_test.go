package eventsourcing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

func Test_GetConsistencyLevel_DefaultsToStrong(t *testing.T) {
	assert.Equal(t, eventsourcing.StrongConsistency, eventsourcing.GetConsistencyLevel(context.Background()))
}

func Test_GetConsistencyLevel_ReturnsTheLevelOfTheContext(t *testing.T) {
	eventual := eventsourcing.WithEventualConsistency(context.Background())
	strongAgain := eventsourcing.WithStrongConsistency(eventual)

	assert.Equal(t, eventsourcing.EventualConsistency, eventsourcing.GetConsistencyLevel(eventual))
	assert.Equal(t, eventsourcing.StrongConsistency, eventsourcing.GetConsistencyLevel(strongAgain))
	assert.Equal(t, "eventual", eventsourcing.EventualConsistency.String())
}
