package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewRoom_NormalizesPair(t *testing.T) {
	req := require.New(t)
	a, b := uuid.New(), uuid.New()

	ab := NewRoom(a, b)
	ba := NewRoom(b, a)

	req.Equal(ab.ParticipantLow, ba.ParticipantLow)
	req.Equal(ab.ParticipantHigh, ba.ParticipantHigh)
	req.Equal(a, ab.InitiatorID)
	req.Equal(b, ba.InitiatorID)

	req.True(ab.HasParticipant(a))
	req.True(ab.HasParticipant(b))
	req.False(ab.HasParticipant(uuid.New()))
	req.Equal(b, ab.OtherParticipant(a))
	req.Equal(a, ab.OtherParticipant(b))
}
