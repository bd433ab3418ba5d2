package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsEnvelope(t *testing.T) {
	before := time.Now()
	e := New(TypeCreditsSpent, map[string]interface{}{"amount": "1.00"})

	assert.Equal(t, TypeCreditsSpent, e.EventType())
	assert.Equal(t, "1.00", e.Payload()["amount"])
	assert.False(t, e.Timestamp().Before(before))
}

func TestUserID(t *testing.T) {
	owner := uuid.New()

	id, err := UserID(New(TypeCreditsSpent, map[string]interface{}{"user_id": owner.String()}))
	require.NoError(t, err)
	assert.Equal(t, owner, id)

	_, err = UserID(New(TypeCreditsSpent, map[string]interface{}{}))
	assert.ErrorContains(t, err, "user_id missing")

	_, err = UserID(New(TypeCreditsSpent, map[string]interface{}{"user_id": 42}))
	assert.ErrorContains(t, err, "user_id missing")

	_, err = UserID(New(TypeProjectStatusChanged, map[string]interface{}{"user_id": "not-a-uuid"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeProjectStatusChanged)
}
